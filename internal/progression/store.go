package progression

import (
	"context"
	"time"
)

// Store runs fn inside one atomic transaction. fn may run more than once when
// the backend reports a serialization failure; results must be assigned, not
// accumulated.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes the engine issues inside a transaction.
// Lookups that miss return the matching NotFound sentinel. Unique constraint
// violations surface as ErrConflict.
type Tx interface {
	CreateAccount(ctx context.Context, a Account) (bool, error)
	Account(ctx context.Context, id int64) (Account, error)
	// LockAccount reads the account and holds it until the transaction ends.
	// Every mutating command takes this lock first.
	LockAccount(ctx context.Context, id int64) (Account, error)
	UpdateBalances(ctx context.Context, a Account) error

	ItemByID(ctx context.Context, id int64) (Item, error)
	ItemByCode(ctx context.Context, code string) (Item, error)
	// ItemByCodeFold matches exactly, then case-insensitively.
	ItemByCodeFold(ctx context.Context, code string) (Item, error)
	FallbackStarter(ctx context.Context) (Item, error)
	ResearchEdge(ctx context.Context, predecessorID, successorID int64) (ResearchEdge, error)

	// Ownerships returns the account's rows ordered by ownership id.
	Ownerships(ctx context.Context, accountID int64) ([]Ownership, error)
	InsertOwnership(ctx context.Context, o Ownership) (int64, error)
	SetOwnershipActive(ctx context.Context, ownershipID int64, active bool) error
	SetOwnershipXP(ctx context.Context, ownershipID, xp int64) error
	DeleteOwnership(ctx context.Context, ownershipID int64) error

	HasUnlock(ctx context.Context, accountID, itemID int64) (bool, error)
	InsertUnlock(ctx context.Context, accountID, itemID int64, at time.Time) (bool, error)
	Unlocks(ctx context.Context, accountID int64) ([]Unlock, error)

	InsertMatch(ctx context.Context, m Match) (int64, error)
	Match(ctx context.Context, id int64) (Match, error)
	LockMatch(ctx context.Context, id int64) (Match, error)
	CloseMatch(ctx context.Context, id int64, at time.Time) error
	Participants(ctx context.Context, matchID int64) ([]Participant, error)
	InsertParticipant(ctx context.Context, p Participant) (int64, error)

	AppendLedger(ctx context.Context, entries []LedgerEntry) error
	Ledger(ctx context.Context, accountID int64, limit int) ([]LedgerEntry, error)
}
