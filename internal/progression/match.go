package progression

import (
	"context"
	"strings"
)

const (
	DefaultMap = "default_map"
	maxMapLen  = 64
)

func (s *Service) StartMatch(ctx context.Context, mapName string) (Match, error) {
	mapName = strings.TrimSpace(mapName)
	if mapName == "" {
		mapName = DefaultMap
	}
	if len(mapName) > maxMapLen {
		return Match{}, invalidf("map name must be at most %d characters", maxMapLen)
	}
	var out Match
	err := s.store.InTx(ctx, func(tx Tx) error {
		out = Match{Map: mapName, StartedAt: s.now()}
		id, err := tx.InsertMatch(ctx, out)
		if err != nil {
			return err
		}
		out.ID = id
		return nil
	})
	if err != nil {
		return Match{}, err
	}
	s.log.Info("match started", "match_id", out.ID, "map", out.Map)
	return out, nil
}

// ResolveMatch settles one participant's report: it records the participant
// and applies currency, free xp, rating and item xp in a single transaction.
func (s *Service) ResolveMatch(ctx context.Context, in ReportInput) (ReportResult, error) {
	var out ReportResult
	in.ItemCode = strings.TrimSpace(in.ItemCode)
	if in.MatchID <= 0 {
		return out, invalidf("match id must be > 0")
	}
	if in.AccountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	if in.ItemCode == "" {
		return out, invalidf("item code is required")
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(ctx, in.MatchID)
		if err != nil {
			return err
		}
		if m.EndedAt != nil {
			return ErrMatchEnded
		}
		recorded, err := tx.Participants(ctx, in.MatchID)
		if err != nil {
			return err
		}
		for _, p := range recorded {
			if p.AccountID == in.AccountID {
				return ErrDuplicateReport
			}
		}
		acc, err := tx.LockAccount(ctx, in.AccountID)
		if err != nil {
			return err
		}
		item, err := tx.ItemByCodeFold(ctx, in.ItemCode)
		if err != nil {
			return err
		}
		owned, err := tx.Ownerships(ctx, in.AccountID)
		if err != nil {
			return err
		}
		own, ok := findOwned(owned, item.ID)
		if !ok {
			return ErrNotOwned
		}

		opponentAvg := EnemyAverage(in.Team, acc.SkillRating, recorded)
		reward := Resolve(Report{Result: in.Result, Kills: in.Kills, Damage: in.Damage}, float64(acc.SkillRating), opponentAvg)

		now := s.now()
		if _, err := tx.InsertParticipant(ctx, Participant{
			MatchID:      in.MatchID,
			AccountID:    in.AccountID,
			ItemID:       item.ID,
			Team:         in.Team,
			Result:       reward.Result,
			Kills:        reward.Kills,
			Damage:       reward.Damage,
			XPEarned:     reward.XP,
			MMRDelta:     reward.MMRDelta,
			RatingBefore: acc.SkillRating,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		acc.Currency += reward.Currency
		acc.FreeXP += reward.FreeXP
		acc.SkillRating += reward.MMRDelta
		if err := tx.UpdateBalances(ctx, acc); err != nil {
			return err
		}
		if err := tx.SetOwnershipXP(ctx, own.ID, own.XP+reward.XP); err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, ledgerGroup(now, LedgerEntry{
			AccountID:     in.AccountID,
			Reason:        "match_reward",
			CurrencyDelta: reward.Currency,
			FreeXPDelta:   reward.FreeXP,
			RatingDelta:   reward.MMRDelta,
			ItemID:        item.ID,
			ItemXPDelta:   reward.XP,
		})); err != nil {
			return err
		}
		out = ReportResult{MatchID: in.MatchID, Reward: reward}
		return nil
	})
	if err != nil {
		return ReportResult{}, err
	}
	s.log.Info("match report resolved",
		"match_id", in.MatchID,
		"account_id", in.AccountID,
		"result", out.Reward.Result,
		"xp", out.Reward.XP,
		"currency", out.Reward.Currency,
		"mmr_delta", out.Reward.MMRDelta,
	)
	return out, nil
}

// EndMatch closes the match; later reports are rejected.
func (s *Service) EndMatch(ctx context.Context, matchID int64) (Match, error) {
	if matchID <= 0 {
		return Match{}, invalidf("match id must be > 0")
	}
	var out Match
	err := s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if m.EndedAt != nil {
			return ErrMatchEnded
		}
		now := s.now()
		if err := tx.CloseMatch(ctx, matchID, now); err != nil {
			return err
		}
		m.EndedAt = &now
		out = m
		return nil
	})
	if err != nil {
		return Match{}, err
	}
	s.log.Info("match ended", "match_id", matchID)
	return out, nil
}

func (s *Service) Participants(ctx context.Context, matchID int64) ([]Participant, error) {
	if matchID <= 0 {
		return nil, invalidf("match id must be > 0")
	}
	var out []Participant
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Match(ctx, matchID); err != nil {
			return err
		}
		var err error
		out, err = tx.Participants(ctx, matchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Participant{}
	}
	return out, nil
}
