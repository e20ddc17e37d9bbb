package progression

import (
	"context"
	"errors"
	"strings"
)

func (s *Service) Buy(ctx context.Context, accountID int64, itemCode string) (BuyResult, error) {
	var out BuyResult
	itemCode = strings.TrimSpace(itemCode)
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	if itemCode == "" {
		return out, invalidf("item code is required")
	}

	var cost int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		item, err := tx.ItemByCode(ctx, itemCode)
		if err != nil {
			return err
		}
		owned, err := tx.Ownerships(ctx, accountID)
		if err != nil {
			return err
		}
		if _, ok := findOwned(owned, item.ID); ok {
			return ErrAlreadyOwned
		}
		if item.Level > 1 {
			unlocked, err := tx.HasUnlock(ctx, accountID, item.ID)
			if err != nil {
				return err
			}
			if !unlocked {
				return ErrItemLocked
			}
		}
		if acc.Currency < item.PurchaseCost {
			return ErrInsufficientFunds
		}

		now := s.now()
		acc.Currency -= item.PurchaseCost
		if err := tx.UpdateBalances(ctx, acc); err != nil {
			return err
		}
		ownershipID, err := tx.InsertOwnership(ctx, Ownership{
			AccountID:  accountID,
			ItemID:     item.ID,
			AcquiredAt: now,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, ledgerGroup(now, LedgerEntry{
			AccountID:     accountID,
			Reason:        "purchase",
			CurrencyDelta: -item.PurchaseCost,
			ItemID:        item.ID,
		})); err != nil {
			return err
		}
		out = BuyResult{OwnershipID: ownershipID, ItemID: item.ID, Currency: acc.Currency}
		cost = item.PurchaseCost
		return nil
	})
	if err != nil {
		return BuyResult{}, err
	}
	s.log.Info("item purchased", "account_id", accountID, "item_id", out.ItemID, "cost", cost, "currency", out.Currency)
	return out, nil
}

// Sell releases the item for half its purchase cost, rounded down.
func (s *Service) Sell(ctx context.Context, accountID, itemID int64) (ReleaseResult, error) {
	return s.release(ctx, accountID, itemID, true)
}

// Remove releases the item without a refund.
func (s *Service) Remove(ctx context.Context, accountID, itemID int64) (ReleaseResult, error) {
	return s.release(ctx, accountID, itemID, false)
}

func (s *Service) release(ctx context.Context, accountID, itemID int64, refund bool) (ReleaseResult, error) {
	var out ReleaseResult
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	if itemID <= 0 {
		return out, invalidf("item id must be > 0")
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		out = ReleaseResult{ItemID: itemID}
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		owned, err := tx.Ownerships(ctx, accountID)
		if err != nil {
			return err
		}
		target, ok := findOwned(owned, itemID)
		if !ok {
			return ErrNotOwned
		}
		if len(owned) < 2 {
			return ErrLastItem
		}

		if refund {
			item, err := tx.ItemByID(ctx, itemID)
			if err != nil {
				return err
			}
			out.Refund = max(0, item.PurchaseCost/2)
		}

		if target.Active {
			out.WasActive = true
			if err := tx.SetOwnershipActive(ctx, target.ID, false); err != nil {
				return err
			}
		}
		if err := tx.DeleteOwnership(ctx, target.ID); err != nil {
			return err
		}

		now := s.now()
		if out.Refund > 0 {
			acc.Currency += out.Refund
			if err := tx.UpdateBalances(ctx, acc); err != nil {
				return err
			}
			if err := tx.AppendLedger(ctx, ledgerGroup(now, LedgerEntry{
				AccountID:     accountID,
				Reason:        "refund",
				CurrencyDelta: out.Refund,
				ItemID:        itemID,
			})); err != nil {
				return err
			}
		}
		out.Currency = acc.Currency

		if target.Active {
			next, ok := successor(owned, target.ID)
			if !ok {
				return ErrLastItem
			}
			if err := tx.SetOwnershipActive(ctx, next.ID, true); err != nil {
				return err
			}
			out.NewActiveItemID = next.ItemID
		}
		return nil
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	op := "item removed"
	if refund {
		op = "item sold"
	}
	s.log.Info(op, "account_id", accountID, "item_id", itemID, "refund", out.Refund, "new_active_item_id", out.NewActiveItemID)
	return out, nil
}

// Grant hands out an item at no cost. Repeating it is a no-op.
func (s *Service) Grant(ctx context.Context, accountID int64, itemCode string) (GrantResult, error) {
	var out GrantResult
	itemCode = strings.TrimSpace(itemCode)
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	if itemCode == "" {
		return out, invalidf("item code is required")
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		item, err := tx.ItemByCode(ctx, itemCode)
		if err != nil {
			return err
		}
		out, err = s.grantTx(ctx, tx, accountID, item)
		return err
	})
	if err != nil {
		return GrantResult{}, err
	}
	if out.Granted {
		s.log.Info("item granted", "account_id", accountID, "item_id", out.ItemID, "active", out.Active)
	}
	return out, nil
}

func (s *Service) grantTx(ctx context.Context, tx Tx, accountID int64, item Item) (GrantResult, error) {
	out := GrantResult{ItemID: item.ID}
	owned, err := tx.Ownerships(ctx, accountID)
	if err != nil {
		return out, err
	}
	if o, ok := findOwned(owned, item.ID); ok {
		out.Active = o.Active
		return out, nil
	}
	_, hasActive := activeOf(owned)
	out.Active = !hasActive
	if _, err := tx.InsertOwnership(ctx, Ownership{
		AccountID:  accountID,
		ItemID:     item.ID,
		Active:     out.Active,
		AcquiredAt: s.now(),
	}); err != nil {
		return out, err
	}
	out.Granted = true
	return out, nil
}

// grantStarterTx gives an account that owns nothing its first item. Accounts
// that already own something are left alone.
func (s *Service) grantStarterTx(ctx context.Context, tx Tx, accountID int64) (GrantResult, error) {
	owned, err := tx.Ownerships(ctx, accountID)
	if err != nil {
		return GrantResult{}, err
	}
	if len(owned) > 0 {
		return GrantResult{}, nil
	}
	item, err := s.pickStarter(ctx, tx)
	if errors.Is(err, ErrItemNotFound) {
		s.log.Warn("no starter item in catalog", "account_id", accountID)
		return GrantResult{}, nil
	}
	if err != nil {
		return GrantResult{}, err
	}
	return s.grantTx(ctx, tx, accountID, item)
}

func (s *Service) pickStarter(ctx context.Context, tx Tx) (Item, error) {
	codes := make([]string, 0, len(StarterPreference)+1)
	if s.cfg.StarterCode != "" {
		codes = append(codes, s.cfg.StarterCode)
	}
	codes = append(codes, StarterPreference...)
	for _, code := range codes {
		item, err := tx.ItemByCode(ctx, code)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return Item{}, err
		}
	}
	return tx.FallbackStarter(ctx)
}
