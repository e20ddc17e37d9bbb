package progression

import "context"

// ConvertFreeXP moves amount from the account's free xp pool onto one owned item.
func (s *Service) ConvertFreeXP(ctx context.Context, accountID, itemID, amount int64) (ConvertResult, error) {
	var out ConvertResult
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	if itemID <= 0 {
		return out, invalidf("item id must be > 0")
	}
	if amount <= 0 {
		return out, invalidf("amount must be > 0")
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.FreeXP < amount {
			return ErrInsufficientFreeXP
		}
		owned, err := tx.Ownerships(ctx, accountID)
		if err != nil {
			return err
		}
		target, ok := findOwned(owned, itemID)
		if !ok {
			return ErrNotOwned
		}

		acc.FreeXP -= amount
		if err := tx.UpdateBalances(ctx, acc); err != nil {
			return err
		}
		if err := tx.SetOwnershipXP(ctx, target.ID, target.XP+amount); err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, ledgerGroup(s.now(), LedgerEntry{
			AccountID:   accountID,
			Reason:      "free_xp_conversion",
			FreeXPDelta: -amount,
			ItemID:      itemID,
			ItemXPDelta: amount,
		})); err != nil {
			return err
		}
		out = ConvertResult{
			ItemID:          itemID,
			Added:           amount,
			ItemXP:          target.XP + amount,
			RemainingFreeXP: acc.FreeXP,
		}
		return nil
	})
	if err != nil {
		return ConvertResult{}, err
	}
	s.log.Info("free xp converted", "account_id", accountID, "item_id", itemID, "amount", amount, "remaining_free_xp", out.RemainingFreeXP)
	return out, nil
}
