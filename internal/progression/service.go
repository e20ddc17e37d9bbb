package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLedgerLimit = 50
	MaxLedgerLimit     = 200
	maxUsernameLen     = 32
)

// StarterPreference is tried in order after the configured override and
// before the catalog-wide fallback.
var StarterPreference = []string{"sam_l1_starter", "vik_l1_starter", "ia_l1_starter"}

type Config struct {
	StarterCode      string
	StartingCurrency int64
}

type Service struct {
	store Store
	log   *slog.Logger
	cfg   Config
	now   func() time.Time
}

func NewService(store Store, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartingCurrency < 0 {
		cfg.StartingCurrency = 0
	}
	cfg.StarterCode = strings.TrimSpace(cfg.StarterCode)
	return &Service{
		store: store,
		log:   logger,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// EnsureAccount creates the account on first sight and makes sure it owns a
// starter item. Calling it again for a healthy account changes nothing.
func (s *Service) EnsureAccount(ctx context.Context, accountID int64, username string) (Profile, error) {
	var out Profile
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	username = normalizeUsername(accountID, username)

	var created bool
	var starter GrantResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		now := s.now()
		var err error
		created, err = tx.CreateAccount(ctx, Account{
			ID:        accountID,
			Username:  username,
			Currency:  s.cfg.StartingCurrency,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if created && acc.Currency != 0 {
			if err := tx.AppendLedger(ctx, ledgerGroup(now, LedgerEntry{
				AccountID:     accountID,
				Reason:        "starting_balance",
				CurrencyDelta: acc.Currency,
			})); err != nil {
				return err
			}
		}
		starter, err = s.grantStarterTx(ctx, tx, accountID)
		if err != nil {
			return err
		}
		out, err = profileTx(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return Profile{}, err
	}
	if created {
		s.log.Info("account created", "account_id", accountID, "username", username)
	}
	if starter.Granted {
		s.log.Info("starter granted", "account_id", accountID, "item_id", starter.ItemID)
	}
	return out, nil
}

func (s *Service) Profile(ctx context.Context, accountID int64) (Profile, error) {
	var out Profile
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = profileTx(ctx, tx, accountID)
		return err
	})
	return out, err
}

// ListOwned never fails for an unknown account; it returns an empty snapshot.
func (s *Service) ListOwned(ctx context.Context, accountID int64) (OwnedSnapshot, error) {
	var out OwnedSnapshot
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		out = OwnedSnapshot{Items: []Ownership{}}
		acc, err := tx.Account(ctx, accountID)
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		owned, err := tx.Ownerships(ctx, accountID)
		if err != nil {
			return err
		}
		out.FreeXP = acc.FreeXP
		if owned != nil {
			out.Items = owned
		}
		return nil
	})
	return out, err
}

func (s *Service) ListUnlocked(ctx context.Context, accountID int64) ([]Unlock, error) {
	if accountID <= 0 {
		return nil, invalidf("account id must be > 0")
	}
	var out []Unlock
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Unlocks(ctx, accountID)
		return err
	})
	if out == nil {
		out = []Unlock{}
	}
	return out, err
}

func (s *Service) Ledger(ctx context.Context, accountID int64, limit int) ([]LedgerEntry, error) {
	if accountID <= 0 {
		return nil, invalidf("account id must be > 0")
	}
	if limit <= 0 {
		limit = DefaultLedgerLimit
	}
	if limit > MaxLedgerLimit {
		limit = MaxLedgerLimit
	}
	var out []LedgerEntry
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Account(ctx, accountID); err != nil {
			return err
		}
		var err error
		out, err = tx.Ledger(ctx, accountID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []LedgerEntry{}
	}
	return out, nil
}

func profileTx(ctx context.Context, tx Tx, accountID int64) (Profile, error) {
	var out Profile
	acc, err := tx.Account(ctx, accountID)
	if err != nil {
		return out, err
	}
	owned, err := tx.Ownerships(ctx, accountID)
	if err != nil {
		return out, err
	}
	out.Account = acc
	out.Owned = owned
	if out.Owned == nil {
		out.Owned = []Ownership{}
	}
	if active, ok := activeOf(owned); ok {
		out.ActiveItemID = active.ItemID
		out.ActiveItemCode = active.ItemCode
		out.ActiveItemName = active.ItemName
	}
	return out, nil
}

// ledgerGroup stamps one group id on every entry written by a single command.
func ledgerGroup(at time.Time, entries ...LedgerEntry) []LedgerEntry {
	groupID := uuid.NewString()
	for i := range entries {
		entries[i].GroupID = groupID
		entries[i].CreatedAt = at
	}
	return entries
}

func normalizeUsername(accountID int64, username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Sprintf("player_%d", accountID)
	}
	if r := []rune(username); len(r) > maxUsernameLen {
		username = string(r[:maxUsernameLen])
	}
	return username
}

func findOwned(owned []Ownership, itemID int64) (Ownership, bool) {
	for _, o := range owned {
		if o.ItemID == itemID {
			return o, true
		}
	}
	return Ownership{}, false
}
