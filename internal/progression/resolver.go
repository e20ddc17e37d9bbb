package progression

import (
	"math"
	"strings"
)

const (
	XPWinBase      = 300
	XPDrawBase     = 200
	XPLoseBase     = 150
	XPPerDamage    = 0.5
	XPPerKill      = 50
	XPCapPerBattle = 2000

	CurrencyParticipation  = 500
	CurrencyWinBonus       = 500
	CurrencyPerDamage      = 2
	CurrencyPerKill        = 150
	CurrencyCapPerBattle   = 10000
	FreeXPShare            = 0.05
	MaxKillsPerBattle      = 20
	MaxDamagePerBattle     = 20000
	RatingK                = 24
	RatingCapGain          = 30
	RatingCapLoss          = -30
	RatingScale            = 400.0
	DefaultStartingBalance = int64(10000)
)

type Result string

const (
	ResultWin  Result = "win"
	ResultDraw Result = "draw"
	ResultLose Result = "lose"
)

// NormalizeResult never fails: anything that is not exactly win or draw,
// ignoring case, counts as a loss.
func NormalizeResult(raw string) Result {
	switch strings.ToLower(raw) {
	case "win":
		return ResultWin
	case "draw":
		return ResultDraw
	default:
		return ResultLose
	}
}

func (r Result) Score() float64 {
	switch r {
	case ResultWin:
		return 1.0
	case ResultDraw:
		return 0.5
	default:
		return 0.0
	}
}

func (r Result) baseXP() int64 {
	switch r {
	case ResultWin:
		return XPWinBase
	case ResultDraw:
		return XPDrawBase
	default:
		return XPLoseBase
	}
}

type Report struct {
	Result string
	Kills  int
	Damage int
}

type Reward struct {
	Result   Result `json:"result"`
	Kills    int    `json:"kills"`
	Damage   int    `json:"damage"`
	XP       int64  `json:"xp"`
	Currency int64  `json:"currency"`
	FreeXP   int64  `json:"free_xp"`
	MMRDelta int64  `json:"mmr_delta"`
}

// Resolve turns a raw report into the clamped reward package. rating is the
// reporter's skill rating, opponentAvg the enemy team average.
func Resolve(report Report, rating, opponentAvg float64) Reward {
	out := Reward{
		Result: NormalizeResult(report.Result),
		Kills:  clampInt(report.Kills, 0, MaxKillsPerBattle),
		Damage: clampInt(report.Damage, 0, MaxDamagePerBattle),
	}

	xpFromDamage := int64(math.Round(float64(out.Damage) * XPPerDamage))
	xpFromKills := int64(out.Kills) * XPPerKill
	out.XP = clamp64(out.Result.baseXP()+xpFromDamage+xpFromKills, 0, XPCapPerBattle)

	currency := int64(CurrencyParticipation)
	if out.Result == ResultWin {
		currency += CurrencyWinBonus
	}
	currency += int64(out.Damage)*CurrencyPerDamage + int64(out.Kills)*CurrencyPerKill
	out.Currency = clamp64(currency, 0, CurrencyCapPerBattle)

	out.FreeXP = int64(math.Round(float64(out.XP) * FreeXPShare))
	out.MMRDelta = RatingDelta(out.Result.Score(), ExpectedScore(rating, opponentAvg))
	return out
}

func ExpectedScore(rating, opponentAvg float64) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (opponentAvg-rating)/RatingScale))
}

func RatingDelta(score, expected float64) int64 {
	delta := int64(math.Round(RatingK * (score - expected)))
	return clamp64(delta, RatingCapLoss, RatingCapGain)
}

// EnemyAverage averages the pre-match ratings of every team other than team.
// With nobody else on record it falls back to the reporter's own side, which
// makes the expectation 0.5 for a lone reporter.
func EnemyAverage(team int, rating int64, others []Participant) float64 {
	var enemySum, enemyCount int64
	ownSum, ownCount := rating, int64(1)
	for _, p := range others {
		if p.Team == team {
			ownSum += p.RatingBefore
			ownCount++
			continue
		}
		enemySum += p.RatingBefore
		enemyCount++
	}
	if enemyCount > 0 {
		return float64(enemySum) / float64(enemyCount)
	}
	return float64(ownSum) / float64(ownCount)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
