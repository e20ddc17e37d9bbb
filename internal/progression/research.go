package progression

import "context"

// Unlock clears the purchase gate on successorID. Level-1 items need no
// predecessor; anything above spends the edge's required xp from the
// predecessor the account owns. Unlocking never grants ownership.
func (s *Service) Unlock(ctx context.Context, accountID, successorID, predecessorID int64) (UnlockResult, error) {
	var out UnlockResult
	if accountID <= 0 {
		return out, invalidf("account id must be > 0")
	}
	if successorID <= 0 {
		return out, invalidf("successor item id must be > 0")
	}
	if predecessorID < 0 {
		return out, invalidf("predecessor item id must be >= 0")
	}

	err := s.store.InTx(ctx, func(tx Tx) error {
		out = UnlockResult{ItemID: successorID}
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		successor, err := tx.ItemByID(ctx, successorID)
		if err != nil {
			return err
		}
		now := s.now()

		if successor.Level <= 1 {
			inserted, err := tx.InsertUnlock(ctx, accountID, successorID, now)
			if err != nil {
				return err
			}
			out.AlreadyUnlocked = !inserted
			return nil
		}

		unlocked, err := tx.HasUnlock(ctx, accountID, successorID)
		if err != nil {
			return err
		}
		if unlocked {
			out.AlreadyUnlocked = true
			return nil
		}

		edge, err := tx.ResearchEdge(ctx, predecessorID, successorID)
		if err != nil {
			return err
		}
		owned, err := tx.Ownerships(ctx, accountID)
		if err != nil {
			return err
		}
		pred, ok := findOwned(owned, predecessorID)
		if !ok {
			return ErrNotOwned
		}
		if pred.XP < edge.RequiredXP {
			return ErrInsufficientXP
		}

		out.PredecessorID = predecessorID
		out.XPSpent = edge.RequiredXP
		out.PredecessorNewXP = pred.XP - edge.RequiredXP
		if err := tx.SetOwnershipXP(ctx, pred.ID, out.PredecessorNewXP); err != nil {
			return err
		}
		if _, err := tx.InsertUnlock(ctx, accountID, successorID, now); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, ledgerGroup(now, LedgerEntry{
			AccountID:   accountID,
			Reason:      "research",
			ItemID:      predecessorID,
			ItemXPDelta: -edge.RequiredXP,
		}))
	})
	if err != nil {
		return UnlockResult{}, err
	}
	if !out.AlreadyUnlocked {
		s.log.Info("item unlocked", "account_id", accountID, "item_id", successorID, "predecessor_item_id", out.PredecessorID, "xp_spent", out.XPSpent)
	}
	return out, nil
}
