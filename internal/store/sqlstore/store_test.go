package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"armory/internal/catalog"
	"armory/internal/progression"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if _, err := s.Reconcile(ctx, c); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	return s
}

func createAccount(t *testing.T, s *Store, id int64) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx progression.Tx) error {
		_, err := tx.CreateAccount(context.Background(), progression.Account{
			ID:        id,
			Username:  "tester",
			Currency:  1000,
			CreatedAt: time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		d    Dialect
		in   string
		want string
	}{
		{d: Postgres, in: `SELECT a FROM t WHERE x = ? AND y = ?`, want: `SELECT a FROM t WHERE x = $1 AND y = $2`},
		{d: Postgres, in: `SELECT '?' FROM t WHERE x = ?`, want: `SELECT '?' FROM t WHERE x = $1`},
		{d: SQLite, in: `SELECT a FROM t WHERE x = ?`, want: `SELECT a FROM t WHERE x = ?`},
	}
	for _, tc := range tests {
		if got := tc.d.rebind(tc.in); got != tc.want {
			t.Fatalf("rebind(%q) got=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"postgres", "PGX", "postgresql"} {
		d, err := ParseDialect(name)
		if err != nil || d != Postgres {
			t.Fatalf("%s: got %v %v", name, d, err)
		}
	}
	if d, err := ParseDialect("sqlite"); err != nil || d != SQLite {
		t.Fatalf("sqlite: got %v %v", d, err)
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c, _ := catalog.Default()

	before, err := s.CatalogItems(ctx)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	c.Items[1].PurchaseCost = 4600
	res, err := s.Reconcile(ctx, c)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if res.Items != len(c.Items) || res.Edges != len(c.Edges) {
		t.Fatalf("unexpected counts %+v", res)
	}
	after, err := s.CatalogItems(ctx)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("item count changed: %d -> %d", len(before), len(after))
	}
	edges, err := s.ResearchEdges(ctx)
	if err != nil {
		t.Fatalf("edges: %v", err)
	}
	if len(edges) != len(c.Edges) {
		t.Fatalf("edges got=%d want=%d", len(edges), len(c.Edges))
	}

	err = s.InTx(ctx, func(tx progression.Tx) error {
		it, err := tx.ItemByCode(ctx, c.Items[1].Code)
		if err != nil {
			return err
		}
		if it.PurchaseCost != 4600 {
			t.Fatalf("cost not updated: %d", it.PurchaseCost)
		}
		if it.ID != before[idxByCode(before, c.Items[1].Code)].ID {
			t.Fatalf("item id changed on reconcile")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
}

func idxByCode(items []progression.Item, code string) int {
	for i, it := range items {
		if it.Code == code {
			return i
		}
	}
	return -1
}

func TestItemByCodeFoldFallsBackToCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	err := s.InTx(ctx, func(tx progression.Tx) error {
		if _, err := tx.ItemByCode(ctx, "SAM_L2_Ronin"); !errors.Is(err, progression.ErrItemNotFound) {
			t.Fatalf("exact lookup should miss, got %v", err)
		}
		it, err := tx.ItemByCodeFold(ctx, "SAM_L2_Ronin")
		if err != nil {
			return err
		}
		if it.Code != "sam_l2_ronin" {
			t.Fatalf("got %s", it.Code)
		}
		if it.Stats.HP != 130 || it.Level != 2 || !it.Visible {
			t.Fatalf("unexpected item %+v", it)
		}
		_, err = tx.ItemByCodeFold(ctx, "nope")
		if !errors.Is(err, progression.ErrItemNotFound) {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestSecondActiveOwnershipIsRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, 7)

	var firstItem, secondItem int64
	err := s.InTx(ctx, func(tx progression.Tx) error {
		a, err := tx.ItemByCode(ctx, "sam_l1_starter")
		if err != nil {
			return err
		}
		b, err := tx.ItemByCode(ctx, "vik_l1_starter")
		if err != nil {
			return err
		}
		firstItem, secondItem = a.ID, b.ID
		_, err = tx.InsertOwnership(ctx, progression.Ownership{AccountID: 7, ItemID: a.ID, Active: true, AcquiredAt: time.Now()})
		return err
	})
	if err != nil {
		t.Fatalf("seed ownership: %v", err)
	}

	err = s.InTx(ctx, func(tx progression.Tx) error {
		_, err := tx.InsertOwnership(ctx, progression.Ownership{AccountID: 7, ItemID: secondItem, Active: true, AcquiredAt: time.Now()})
		return err
	})
	if !errors.Is(err, progression.ErrConflict) {
		t.Fatalf("expected ErrConflict for second active row, got %v", err)
	}

	err = s.InTx(ctx, func(tx progression.Tx) error {
		_, err := tx.InsertOwnership(ctx, progression.Ownership{AccountID: 7, ItemID: firstItem, AcquiredAt: time.Now()})
		return err
	})
	if !errors.Is(err, progression.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate ownership, got %v", err)
	}

	err = s.InTx(ctx, func(tx progression.Tx) error {
		owned, err := tx.Ownerships(ctx, 7)
		if err != nil {
			return err
		}
		if len(owned) != 1 || !owned[0].Active || owned[0].ItemCode != "sam_l1_starter" {
			t.Fatalf("rollback left unexpected rows: %+v", owned)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
}

func TestInsertUnlockIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createAccount(t, s, 9)

	err := s.InTx(ctx, func(tx progression.Tx) error {
		it, err := tx.ItemByCode(ctx, "sam_l2_ronin")
		if err != nil {
			return err
		}
		first, err := tx.InsertUnlock(ctx, 9, it.ID, time.Now())
		if err != nil {
			return err
		}
		second, err := tx.InsertUnlock(ctx, 9, it.ID, time.Now())
		if err != nil {
			return err
		}
		if !first || second {
			t.Fatalf("inserted flags first=%v second=%v", first, second)
		}
		has, err := tx.HasUnlock(ctx, 9, it.ID)
		if err != nil {
			return err
		}
		if !has {
			t.Fatalf("unlock not visible")
		}
		unlocks, err := tx.Unlocks(ctx, 9)
		if err != nil {
			return err
		}
		if len(unlocks) != 1 || unlocks[0].ItemCode != "sam_l2_ronin" {
			t.Fatalf("unexpected unlocks %+v", unlocks)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestMatchLifecycleColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	err := s.InTx(ctx, func(tx progression.Tx) error {
		id, err := tx.InsertMatch(ctx, progression.Match{Map: "default_map", StartedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		m, err := tx.LockMatch(ctx, id)
		if err != nil {
			return err
		}
		if m.EndedAt != nil {
			t.Fatalf("new match should be open")
		}
		if err := tx.CloseMatch(ctx, id, time.Now().UTC()); err != nil {
			return err
		}
		m, err = tx.Match(ctx, id)
		if err != nil {
			return err
		}
		if m.EndedAt == nil {
			t.Fatalf("match should be closed")
		}
		if _, err := tx.Match(ctx, id+100); !errors.Is(err, progression.ErrMatchNotFound) {
			t.Fatalf("expected ErrMatchNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestTranslatePassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	if got := translate(plain); got != plain {
		t.Fatalf("got %v", got)
	}
	if translate(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
