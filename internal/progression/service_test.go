package progression_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"armory/internal/catalog"
	"armory/internal/progression"
	"armory/internal/store/sqlstore"
)

type harness struct {
	svc   *progression.Service
	store *sqlstore.Store
	items map[string]int64
}

func newHarness(t *testing.T, cfg progression.Config) *harness {
	t.Helper()
	return newHarnessDSN(t, ":memory:", cfg)
}

func newHarnessDSN(t *testing.T, dsn string, cfg progression.Config) *harness {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.OpenSQLite(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if _, err := store.Reconcile(ctx, c); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	items, err := store.CatalogItems(ctx)
	if err != nil {
		t.Fatalf("catalog items: %v", err)
	}
	h := &harness{
		svc:   progression.NewService(store, nil, cfg),
		store: store,
		items: make(map[string]int64, len(items)),
	}
	for _, it := range items {
		h.items[it.Code] = it.ID
	}
	return h
}

func defaultConfig() progression.Config {
	return progression.Config{StartingCurrency: progression.DefaultStartingBalance}
}

func (h *harness) account(t *testing.T, id int64) progression.Profile {
	t.Helper()
	p, err := h.svc.EnsureAccount(context.Background(), id, "")
	if err != nil {
		t.Fatalf("ensure account %d: %v", id, err)
	}
	return p
}

func (h *harness) id(t *testing.T, code string) int64 {
	t.Helper()
	id, ok := h.items[code]
	if !ok {
		t.Fatalf("unknown item %s", code)
	}
	return id
}

func activeCount(t *testing.T, h *harness, accountID int64) int {
	t.Helper()
	snap, err := h.svc.ListOwned(context.Background(), accountID)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	n := 0
	for _, o := range snap.Items {
		if o.Active {
			n++
		}
	}
	return n
}

// playMatch reports a win with 3 kills and 500 damage on a fresh match.
func playMatch(t *testing.T, h *harness, accountID int64, itemCode string) progression.Reward {
	t.Helper()
	ctx := context.Background()
	m, err := h.svc.StartMatch(ctx, "")
	if err != nil {
		t.Fatalf("start match: %v", err)
	}
	res, err := h.svc.ResolveMatch(ctx, progression.ReportInput{
		MatchID:   m.ID,
		AccountID: accountID,
		ItemCode:  itemCode,
		Team:      1,
		Result:    "win",
		Kills:     3,
		Damage:    500,
	})
	if err != nil {
		t.Fatalf("resolve match: %v", err)
	}
	return res.Reward
}

func TestEnsureAccountGrantsActiveStarter(t *testing.T) {
	h := newHarness(t, defaultConfig())
	p := h.account(t, 1)
	if p.Account.Currency != progression.DefaultStartingBalance {
		t.Fatalf("currency got=%d", p.Account.Currency)
	}
	if p.Account.Username != "player_1" {
		t.Fatalf("username got=%q", p.Account.Username)
	}
	if len(p.Owned) != 1 || !p.Owned[0].Active || p.ActiveItemCode != "sam_l1_starter" {
		t.Fatalf("unexpected starter state %+v", p)
	}

	again := h.account(t, 1)
	if len(again.Owned) != 1 || again.Account.Currency != p.Account.Currency {
		t.Fatalf("second ensure changed state: %+v", again)
	}
	entries, err := h.svc.Ledger(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "starting_balance" {
		t.Fatalf("unexpected ledger %+v", entries)
	}
}

func TestEnsureAccountHonoursStarterOverride(t *testing.T) {
	h := newHarness(t, progression.Config{StarterCode: "vik_l1_starter", StartingCurrency: 500})
	p := h.account(t, 2)
	if p.ActiveItemCode != "vik_l1_starter" {
		t.Fatalf("starter got=%s", p.ActiveItemCode)
	}
	if p.Account.Currency != 500 {
		t.Fatalf("currency got=%d", p.Account.Currency)
	}
}

func TestEnsureAccountRejectsBadID(t *testing.T) {
	h := newHarness(t, defaultConfig())
	_, err := h.svc.EnsureAccount(context.Background(), 0, "x")
	if progression.KindOf(err) != progression.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetActiveKeepsExactlyOneActive(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	if _, err := h.svc.Buy(ctx, 1, "vik_l1_starter"); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := activeCount(t, h, 1); got != 1 {
		t.Fatalf("active rows after buy: %d", got)
	}

	vik := h.id(t, "vik_l1_starter")
	got, err := h.svc.SetActive(ctx, 1, vik)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if got != vik {
		t.Fatalf("active item got=%d want=%d", got, vik)
	}
	if n := activeCount(t, h, 1); n != 1 {
		t.Fatalf("active rows after switch: %d", n)
	}
	p, _ := h.svc.Profile(ctx, 1)
	if p.ActiveItemID != vik {
		t.Fatalf("profile active got=%d want=%d", p.ActiveItemID, vik)
	}

	if _, err := h.svc.SetActive(ctx, 1, vik); err != nil {
		t.Fatalf("repeat set active should be a no-op: %v", err)
	}
	if n := activeCount(t, h, 1); n != 1 {
		t.Fatalf("active rows after repeat: %d", n)
	}

	_, err = h.svc.SetActive(ctx, 1, h.id(t, "sam_l2_kensei"))
	if !errors.Is(err, progression.ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestBuyRejections(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)

	tests := []struct {
		name string
		code string
		want error
	}{
		{name: "unknown", code: "no_such_item", want: progression.ErrItemNotFound},
		{name: "already owned", code: "sam_l1_starter", want: progression.ErrAlreadyOwned},
		{name: "locked", code: "sam_l2_ronin", want: progression.ErrItemLocked},
		{name: "code case differs", code: "VIK_L1_STARTER", want: progression.ErrItemNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Buy(ctx, 1, tc.code)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
	if _, err := h.svc.Buy(ctx, 1, " "); progression.KindOf(err) != progression.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.svc.Buy(ctx, 99, "sam_l1_starter"); !errors.Is(err, progression.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	h := newHarness(t, progression.Config{StartingCurrency: 1000})
	ctx := context.Background()
	h.account(t, 1)
	ronin := h.id(t, "sam_l2_ronin")

	reward := playMatch(t, h, 1, "sam_l1_starter")
	if _, err := h.svc.Unlock(ctx, 1, ronin, h.id(t, "sam_l1_starter")); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	before, _ := h.svc.Profile(ctx, 1)
	if want := 1000 + reward.Currency; before.Account.Currency != want || want >= 4500 {
		t.Fatalf("currency got=%d want=%d below ronin cost", before.Account.Currency, want)
	}

	_, err := h.svc.Buy(ctx, 1, "sam_l2_ronin")
	if !errors.Is(err, progression.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if progression.KindOf(err) != progression.KindPrecondition {
		t.Fatalf("kind got=%q", progression.KindOf(err))
	}
	after, _ := h.svc.Profile(ctx, 1)
	if after.Account.Currency != before.Account.Currency || len(after.Owned) != len(before.Owned) {
		t.Fatalf("failed buy changed state: before=%+v after=%+v", before, after)
	}
	entries, _ := h.svc.Ledger(ctx, 1, 0)
	if entries[0].Reason == "purchase" {
		t.Fatalf("failed buy wrote a ledger entry: %+v", entries[0])
	}
}

func TestResearchUnlockAndBuy(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	starter := h.id(t, "sam_l1_starter")
	ronin := h.id(t, "sam_l2_ronin")
	kensei := h.id(t, "sam_l2_kensei")

	if _, err := h.svc.Unlock(ctx, 1, ronin, starter); !errors.Is(err, progression.ErrInsufficientXP) {
		t.Fatalf("expected ErrInsufficientXP, got %v", err)
	}
	if _, err := h.svc.Unlock(ctx, 1, ronin, h.id(t, "vik_l1_starter")); !errors.Is(err, progression.ErrEdgeNotFound) {
		t.Fatalf("expected ErrEdgeNotFound, got %v", err)
	}
	if _, err := h.svc.Unlock(ctx, 1, 9999, starter); !errors.Is(err, progression.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	reward := playMatch(t, h, 1, "sam_l1_starter")
	if reward.XP != 700 {
		t.Fatalf("match xp got=%d", reward.XP)
	}

	res, err := h.svc.Unlock(ctx, 1, ronin, starter)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if res.XPSpent != 400 || res.PredecessorNewXP != 300 || res.AlreadyUnlocked {
		t.Fatalf("unexpected unlock result %+v", res)
	}
	again, err := h.svc.Unlock(ctx, 1, ronin, starter)
	if err != nil {
		t.Fatalf("repeat unlock: %v", err)
	}
	if !again.AlreadyUnlocked || again.XPSpent != 0 {
		t.Fatalf("repeat unlock should be a no-op: %+v", again)
	}
	snap, _ := h.svc.ListOwned(ctx, 1)
	if snap.Items[0].XP != 300 {
		t.Fatalf("predecessor xp got=%d want=300", snap.Items[0].XP)
	}
	unlocks, err := h.svc.ListUnlocked(ctx, 1)
	if err != nil {
		t.Fatalf("list unlocked: %v", err)
	}
	if len(unlocks) != 1 || unlocks[0].ItemID != ronin {
		t.Fatalf("unexpected unlocks %+v", unlocks)
	}

	if _, err := h.svc.Unlock(ctx, 1, kensei, starter); !errors.Is(err, progression.ErrInsufficientXP) {
		t.Fatalf("expected ErrInsufficientXP for kensei, got %v", err)
	}

	bought, err := h.svc.Buy(ctx, 1, "sam_l2_ronin")
	if err != nil {
		t.Fatalf("buy ronin: %v", err)
	}
	want := progression.DefaultStartingBalance + reward.Currency - 4500
	if bought.Currency != want {
		t.Fatalf("currency after buy got=%d want=%d", bought.Currency, want)
	}
}

func TestUnlockLevelOneIsIdempotent(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	vik := h.id(t, "vik_l1_starter")

	first, err := h.svc.Unlock(ctx, 1, vik, 0)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	second, err := h.svc.Unlock(ctx, 1, vik, 0)
	if err != nil {
		t.Fatalf("repeat unlock: %v", err)
	}
	if first.AlreadyUnlocked || !second.AlreadyUnlocked || first.XPSpent != 0 {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
}

func TestUnlockRequiresPredecessorOwnership(t *testing.T) {
	h := newHarness(t, progression.Config{StarterCode: "vik_l1_starter", StartingCurrency: 0})
	ctx := context.Background()
	h.account(t, 1)
	_, err := h.svc.Unlock(ctx, 1, h.id(t, "sam_l2_ronin"), h.id(t, "sam_l1_starter"))
	if !errors.Is(err, progression.ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestSellActiveHandsOffToRemainingItem(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	sam := h.id(t, "sam_l1_starter")
	vik := h.id(t, "vik_l1_starter")

	if _, err := h.svc.Sell(ctx, 1, sam); !errors.Is(err, progression.ErrLastItem) {
		t.Fatalf("expected ErrLastItem, got %v", err)
	}
	if _, err := h.svc.Buy(ctx, 1, "vik_l1_starter"); err != nil {
		t.Fatalf("buy: %v", err)
	}

	res, err := h.svc.Sell(ctx, 1, sam)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !res.WasActive || res.NewActiveItemID != vik || res.Refund != 0 {
		t.Fatalf("unexpected sell result %+v", res)
	}
	snap, _ := h.svc.ListOwned(ctx, 1)
	if len(snap.Items) != 1 || !snap.Items[0].Active || snap.Items[0].ItemID != vik {
		t.Fatalf("unexpected ownership after sell %+v", snap.Items)
	}
	if _, err := h.svc.Remove(ctx, 1, vik); !errors.Is(err, progression.ErrLastItem) {
		t.Fatalf("expected ErrLastItem on remove, got %v", err)
	}
	if _, err := h.svc.Sell(ctx, 1, sam); !errors.Is(err, progression.ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
}

func TestSellRefundsHalfCost(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	starter := h.id(t, "sam_l1_starter")
	ronin := h.id(t, "sam_l2_ronin")

	playMatch(t, h, 1, "sam_l1_starter")
	if _, err := h.svc.Unlock(ctx, 1, ronin, starter); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	bought, err := h.svc.Buy(ctx, 1, "sam_l2_ronin")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	res, err := h.svc.Sell(ctx, 1, ronin)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.Refund != 2250 || res.Currency != bought.Currency+2250 {
		t.Fatalf("unexpected refund %+v (currency before %d)", res, bought.Currency)
	}
	if res.WasActive || res.NewActiveItemID != 0 {
		t.Fatalf("inactive sale should not hand off: %+v", res)
	}
	if n := activeCount(t, h, 1); n != 1 {
		t.Fatalf("active rows got=%d", n)
	}
}

func TestRemoveActivePicksHighestXP(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	sam := h.id(t, "sam_l1_starter")
	ronin := h.id(t, "sam_l2_ronin")

	playMatch(t, h, 1, "sam_l1_starter")
	if _, err := h.svc.Unlock(ctx, 1, ronin, sam); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := h.svc.Buy(ctx, 1, "vik_l1_starter"); err != nil {
		t.Fatalf("buy vik: %v", err)
	}
	if _, err := h.svc.Buy(ctx, 1, "sam_l2_ronin"); err != nil {
		t.Fatalf("buy ronin: %v", err)
	}
	if _, err := h.svc.SetActive(ctx, 1, ronin); err != nil {
		t.Fatalf("set active: %v", err)
	}
	before, _ := h.svc.Profile(ctx, 1)

	res, err := h.svc.Remove(ctx, 1, ronin)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if res.Refund != 0 || res.Currency != before.Account.Currency {
		t.Fatalf("remove must not refund: %+v", res)
	}
	if res.NewActiveItemID != sam {
		t.Fatalf("replacement got=%d want=%d (starter has 300 xp, vik 0)", res.NewActiveItemID, sam)
	}
	if n := activeCount(t, h, 1); n != 1 {
		t.Fatalf("active rows got=%d", n)
	}
}

func TestConvertFreeXP(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	sam := h.id(t, "sam_l1_starter")

	if _, err := h.svc.ConvertFreeXP(ctx, 1, sam, 0); progression.KindOf(err) != progression.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.svc.ConvertFreeXP(ctx, 1, sam, 10); !errors.Is(err, progression.ErrInsufficientFreeXP) {
		t.Fatalf("expected ErrInsufficientFreeXP, got %v", err)
	}

	reward := playMatch(t, h, 1, "sam_l1_starter")
	if _, err := h.svc.ConvertFreeXP(ctx, 1, h.id(t, "vik_l1_starter"), 10); !errors.Is(err, progression.ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
	res, err := h.svc.ConvertFreeXP(ctx, 1, sam, 10)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.ItemXP != reward.XP+10 || res.RemainingFreeXP != reward.FreeXP-10 {
		t.Fatalf("unexpected convert result %+v", res)
	}
	snap, _ := h.svc.ListOwned(ctx, 1)
	if snap.FreeXP != reward.FreeXP-10 || snap.Items[0].XP != reward.XP+10 {
		t.Fatalf("snapshot disagrees: %+v", snap)
	}
}

func TestResolveMatchAppliesRewardOnce(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)

	m, err := h.svc.StartMatch(ctx, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.Map != progression.DefaultMap {
		t.Fatalf("map got=%s", m.Map)
	}
	in := progression.ReportInput{MatchID: m.ID, AccountID: 1, ItemCode: "SAM_L1_STARTER", Team: 1, Result: "Win", Kills: 3, Damage: 500}
	res, err := h.svc.ResolveMatch(ctx, in)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r := res.Reward
	if r.XP != 700 || r.Currency != 2450 || r.FreeXP != 35 || r.MMRDelta != 12 {
		t.Fatalf("unexpected reward %+v", r)
	}

	if _, err := h.svc.ResolveMatch(ctx, in); !errors.Is(err, progression.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}
	p, _ := h.svc.Profile(ctx, 1)
	if p.Account.Currency != progression.DefaultStartingBalance+2450 || p.Account.FreeXP != 35 || p.Account.SkillRating != 12 {
		t.Fatalf("duplicate report changed balances: %+v", p.Account)
	}
	if p.Owned[0].XP != 700 {
		t.Fatalf("item xp got=%d", p.Owned[0].XP)
	}

	parts, err := h.svc.Participants(ctx, m.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(parts) != 1 || parts[0].Result != progression.ResultWin || parts[0].ItemCode != "sam_l1_starter" || parts[0].RatingBefore != 0 {
		t.Fatalf("unexpected participants %+v", parts)
	}

	entries, _ := h.svc.Ledger(ctx, 1, 10)
	if len(entries) != 2 || entries[0].Reason != "match_reward" || entries[0].CurrencyDelta != 2450 {
		t.Fatalf("unexpected ledger %+v", entries)
	}
}

func TestResolveMatchRejections(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	m, _ := h.svc.StartMatch(ctx, "arena")

	tests := []struct {
		name string
		in   progression.ReportInput
		want error
	}{
		{
			name: "unknown match",
			in:   progression.ReportInput{MatchID: m.ID + 50, AccountID: 1, ItemCode: "sam_l1_starter", Result: "win"},
			want: progression.ErrMatchNotFound,
		},
		{
			name: "unknown item",
			in:   progression.ReportInput{MatchID: m.ID, AccountID: 1, ItemCode: "ghost", Result: "win"},
			want: progression.ErrItemNotFound,
		},
		{
			name: "item not owned",
			in:   progression.ReportInput{MatchID: m.ID, AccountID: 1, ItemCode: "vik_l1_starter", Result: "win"},
			want: progression.ErrNotOwned,
		},
		{
			name: "unknown account",
			in:   progression.ReportInput{MatchID: m.ID, AccountID: 42, ItemCode: "sam_l1_starter", Result: "win"},
			want: progression.ErrAccountNotFound,
		},
		{
			name: "missing item code",
			in:   progression.ReportInput{MatchID: m.ID, AccountID: 1, Result: "win"},
			want: progression.ErrInvalidInput,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.ResolveMatch(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
	p, _ := h.svc.Profile(ctx, 1)
	if p.Account.Currency != progression.DefaultStartingBalance {
		t.Fatalf("rejections mutated balance: %d", p.Account.Currency)
	}
}

func TestResolveMatchAcceptsAnyTeamID(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	h.account(t, 2)
	m, _ := h.svc.StartMatch(ctx, "arena")

	for _, in := range []progression.ReportInput{
		{MatchID: m.ID, AccountID: 1, ItemCode: "sam_l1_starter", Team: -7, Result: "win"},
		{MatchID: m.ID, AccountID: 2, ItemCode: "sam_l1_starter", Team: 1000, Result: "lose"},
	} {
		if _, err := h.svc.ResolveMatch(ctx, in); err != nil {
			t.Fatalf("team %d: %v", in.Team, err)
		}
	}
	parts, err := h.svc.Participants(ctx, m.ID)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(parts) != 2 || parts[0].Team != -7 || parts[1].Team != 1000 {
		t.Fatalf("unexpected participants %+v", parts)
	}
}

func TestEndMatchClosesReporting(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	m, _ := h.svc.StartMatch(ctx, "arena")

	ended, err := h.svc.EndMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatalf("ended_at not set")
	}
	if _, err := h.svc.EndMatch(ctx, m.ID); !errors.Is(err, progression.ErrMatchEnded) {
		t.Fatalf("expected ErrMatchEnded, got %v", err)
	}
	_, err = h.svc.ResolveMatch(ctx, progression.ReportInput{MatchID: m.ID, AccountID: 1, ItemCode: "sam_l1_starter", Result: "win"})
	if !errors.Is(err, progression.ErrMatchEnded) {
		t.Fatalf("expected ErrMatchEnded, got %v", err)
	}
	if _, err := h.svc.EndMatch(ctx, m.ID+9); !errors.Is(err, progression.ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestResolveMatchUsesEnemyTeamRating(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	h.account(t, 2)

	// account 1 climbs to 12 rating first.
	playMatch(t, h, 1, "sam_l1_starter")

	m, _ := h.svc.StartMatch(ctx, "arena")
	if _, err := h.svc.ResolveMatch(ctx, progression.ReportInput{
		MatchID: m.ID, AccountID: 1, ItemCode: "sam_l1_starter", Team: 1, Result: "lose",
	}); err != nil {
		t.Fatalf("report 1: %v", err)
	}
	res, err := h.svc.ResolveMatch(ctx, progression.ReportInput{
		MatchID: m.ID, AccountID: 2, ItemCode: "sam_l1_starter", Team: 2, Result: "win",
	})
	if err != nil {
		t.Fatalf("report 2: %v", err)
	}
	want := progression.RatingDelta(1, progression.ExpectedScore(0, 12))
	if res.Reward.MMRDelta != want {
		t.Fatalf("delta got=%d want=%d", res.Reward.MMRDelta, want)
	}
}

func TestListsForUnknownAccountAreEmpty(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	snap, err := h.svc.ListOwned(ctx, 77)
	if err != nil || len(snap.Items) != 0 || snap.FreeXP != 0 {
		t.Fatalf("got %+v %v", snap, err)
	}
	unlocks, err := h.svc.ListUnlocked(ctx, 77)
	if err != nil || len(unlocks) != 0 {
		t.Fatalf("got %+v %v", unlocks, err)
	}
}

func TestGrant(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	h.account(t, 1)

	res, err := h.svc.Grant(ctx, 1, "sam_l2_kensei")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !res.Granted || res.Active {
		t.Fatalf("grant to account with active item should be inactive: %+v", res)
	}
	again, err := h.svc.Grant(ctx, 1, "sam_l2_kensei")
	if err != nil {
		t.Fatalf("repeat grant: %v", err)
	}
	if again.Granted {
		t.Fatalf("repeat grant should be a no-op")
	}
	if _, err := h.svc.Grant(ctx, 1, "nope"); !errors.Is(err, progression.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	p, _ := h.svc.Profile(ctx, 1)
	if p.Account.Currency != progression.DefaultStartingBalance || len(p.Owned) != 2 {
		t.Fatalf("grant should be free: %+v", p)
	}
}

func TestConcurrentCommandsKeepOneActive(t *testing.T) {
	h := newHarnessDSN(t, filepath.Join(t.TempDir(), "armory.db"), defaultConfig())
	ctx := context.Background()
	h.account(t, 1)
	sam := h.id(t, "sam_l1_starter")
	vik := h.id(t, "vik_l1_starter")
	kensei := h.id(t, "sam_l2_kensei")
	if _, err := h.svc.Buy(ctx, 1, "vik_l1_starter"); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := h.svc.Grant(ctx, 1, "sam_l2_kensei"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	ops := make([]func() error, 0, 31)
	for i := 0; i < 20; i++ {
		target := sam
		if i%2 == 1 {
			target = vik
		}
		ops = append(ops, func() error {
			_, err := h.svc.SetActive(ctx, 1, target)
			return err
		})
	}
	for i := 0; i < 10; i++ {
		ops = append(ops, func() error {
			_, err := h.svc.Buy(ctx, 1, "vik_l1_starter")
			return err
		})
	}
	ops = append(ops, func() error {
		_, err := h.svc.Sell(ctx, 1, kensei)
		return err
	})

	var wg sync.WaitGroup
	errs := make([]error, len(ops))
	start := make(chan struct{})
	for i, op := range ops {
		wg.Add(1)
		go func(i int, op func() error) {
			defer wg.Done()
			<-start
			errs[i] = op()
		}(i, op)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		if kind := progression.KindOf(err); kind != progression.KindConflict {
			t.Fatalf("op %d: kind=%q err=%v", i, kind, err)
		}
	}
	if n := activeCount(t, h, 1); n != 1 {
		t.Fatalf("active rows got=%d want=1", n)
	}
	p, err := h.svc.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.ActiveItemID != sam && p.ActiveItemID != vik {
		t.Fatalf("active item got=%d", p.ActiveItemID)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want progression.Kind
	}{
		{err: nil, want: ""},
		{err: progression.ErrNotOwned, want: progression.KindNotFound},
		{err: progression.ErrAlreadyOwned, want: progression.KindConflict},
		{err: progression.ErrLastItem, want: progression.KindPrecondition},
		{err: progression.ErrInvalidInput, want: progression.KindValidation},
		{err: errors.New("disk on fire"), want: progression.KindInternal},
	}
	for _, tc := range tests {
		if got := progression.KindOf(tc.err); got != tc.want {
			t.Fatalf("err=%v got=%q want=%q", tc.err, got, tc.want)
		}
	}
}
