package progression

import "context"

// SetActive makes itemID the account's single active item. The current
// active row is cleared and written before the target is set, so no state
// ever holds two active rows and the per-account unique index never fires.
func (s *Service) SetActive(ctx context.Context, accountID, itemID int64) (int64, error) {
	if accountID <= 0 {
		return 0, invalidf("account id must be > 0")
	}
	if itemID <= 0 {
		return 0, invalidf("item id must be > 0")
	}

	var changed bool
	err := s.store.InTx(ctx, func(tx Tx) error {
		changed = false
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
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
		if target.Active {
			return nil
		}
		if err := switchActive(ctx, tx, owned, target.ID); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed {
		s.log.Info("active item changed", "account_id", accountID, "item_id", itemID)
	}
	return itemID, nil
}

// switchActive runs the two ordered writes: clear, then set.
func switchActive(ctx context.Context, tx Tx, owned []Ownership, targetOwnershipID int64) error {
	for _, o := range owned {
		if o.Active && o.ID != targetOwnershipID {
			if err := tx.SetOwnershipActive(ctx, o.ID, false); err != nil {
				return err
			}
		}
	}
	return tx.SetOwnershipActive(ctx, targetOwnershipID, true)
}

func activeOf(owned []Ownership) (Ownership, bool) {
	for _, o := range owned {
		if o.Active {
			return o, true
		}
	}
	return Ownership{}, false
}

// successor picks the row that inherits the active flag: highest xp, then
// the oldest ownership.
func successor(owned []Ownership, excludeOwnershipID int64) (Ownership, bool) {
	var best Ownership
	found := false
	for _, o := range owned {
		if o.ID == excludeOwnershipID {
			continue
		}
		if !found || o.XP > best.XP || (o.XP == best.XP && o.ID < best.ID) {
			best = o
			found = true
		}
	}
	return best, found
}
