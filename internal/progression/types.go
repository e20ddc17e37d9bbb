package progression

import "time"

type Account struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Currency      int64     `json:"currency"`
	BonusCurrency int64     `json:"bonus_currency"`
	FreeXP        int64     `json:"free_xp"`
	SkillRating   int64     `json:"skill_rating"`
	CreatedAt     time.Time `json:"created_at"`
}

type Stats struct {
	HP            int     `json:"hp"`
	Damage        int     `json:"damage"`
	Accuracy      float64 `json:"accuracy"`
	Speed         float64 `json:"speed"`
	Acceleration  float64 `json:"acceleration"`
	TraverseSpeed float64 `json:"traverse_speed"`
	Armor         int     `json:"armor"`
}

// Item is a catalog definition. Warriors and vehicles share this shape;
// faction, branch and class are the only things that tell them apart.
type Item struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Faction      string `json:"faction"`
	Branch       string `json:"branch"`
	Class        string `json:"class"`
	Level        int    `json:"level"`
	PurchaseCost int64  `json:"purchase_cost"`
	Stats        Stats  `json:"stats"`
	Visible      bool   `json:"visible"`
}

type ResearchEdge struct {
	ID            int64 `json:"id"`
	PredecessorID int64 `json:"predecessor_item_id"`
	SuccessorID   int64 `json:"successor_item_id"`
	RequiredXP    int64 `json:"required_xp"`
}

type Ownership struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	ItemID     int64     `json:"item_id"`
	ItemCode   string    `json:"item_code"`
	ItemName   string    `json:"item_name"`
	XP         int64     `json:"xp"`
	Active     bool      `json:"is_active"`
	AcquiredAt time.Time `json:"acquired_at"`
}

type Unlock struct {
	AccountID  int64     `json:"account_id"`
	ItemID     int64     `json:"item_id"`
	ItemCode   string    `json:"item_code"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

type Match struct {
	ID        int64      `json:"id"`
	Map       string     `json:"map"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type Participant struct {
	ID           int64     `json:"id"`
	MatchID      int64     `json:"match_id"`
	AccountID    int64     `json:"account_id"`
	ItemID       int64     `json:"item_id"`
	ItemCode     string    `json:"item_code"`
	Team         int       `json:"team"`
	Result       Result    `json:"result"`
	Kills        int       `json:"kills"`
	Damage       int       `json:"damage"`
	XPEarned     int64     `json:"xp_earned"`
	MMRDelta     int64     `json:"mmr_delta"`
	RatingBefore int64     `json:"rating_before"`
	CreatedAt    time.Time `json:"created_at"`
}

type LedgerEntry struct {
	ID            int64     `json:"id"`
	GroupID       string    `json:"group_id"`
	AccountID     int64     `json:"account_id"`
	Reason        string    `json:"reason"`
	CurrencyDelta int64     `json:"currency_delta"`
	FreeXPDelta   int64     `json:"free_xp_delta"`
	RatingDelta   int64     `json:"rating_delta"`
	ItemID        int64     `json:"item_id,omitempty"`
	ItemXPDelta   int64     `json:"item_xp_delta"`
	CreatedAt     time.Time `json:"created_at"`
}

type Profile struct {
	Account        Account     `json:"account"`
	ActiveItemID   int64       `json:"active_item_id"`
	ActiveItemCode string      `json:"active_item_code"`
	ActiveItemName string      `json:"active_item_name"`
	Owned          []Ownership `json:"owned"`
}

type OwnedSnapshot struct {
	FreeXP int64       `json:"free_xp"`
	Items  []Ownership `json:"items"`
}

type BuyResult struct {
	OwnershipID int64 `json:"ownership_id"`
	ItemID      int64 `json:"item_id"`
	Currency    int64 `json:"currency"`
}

type ReleaseResult struct {
	ItemID          int64 `json:"item_id"`
	Refund          int64 `json:"refund"`
	Currency        int64 `json:"currency"`
	WasActive       bool  `json:"was_active"`
	NewActiveItemID int64 `json:"new_active_item_id,omitempty"`
}

type UnlockResult struct {
	ItemID           int64 `json:"unlocked_item_id"`
	PredecessorID    int64 `json:"predecessor_item_id,omitempty"`
	XPSpent          int64 `json:"xp_spent"`
	PredecessorNewXP int64 `json:"predecessor_new_xp"`
	AlreadyUnlocked  bool  `json:"already_unlocked"`
}

type ConvertResult struct {
	ItemID          int64 `json:"item_id"`
	Added           int64 `json:"added_xp"`
	ItemXP          int64 `json:"new_item_xp"`
	RemainingFreeXP int64 `json:"remaining_free_xp"`
}

type GrantResult struct {
	ItemID  int64 `json:"item_id"`
	Granted bool  `json:"granted"`
	Active  bool  `json:"is_active"`
}

type ReportInput struct {
	MatchID   int64
	AccountID int64
	ItemCode  string
	Team      int
	Result    string
	Kills     int
	Damage    int
}

type ReportResult struct {
	MatchID int64  `json:"match_id"`
	Reward  Reward `json:"reward"`
}
