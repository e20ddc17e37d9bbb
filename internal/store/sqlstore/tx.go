package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"armory/internal/progression"
)

type tx struct {
	tx *sql.Tx
	d  Dialect
}

var _ progression.Tx = (*tx)(nil)

const accountColumns = `id, username, currency, bonus_currency, free_xp, skill_rating, created_at`

const itemColumns = `id, code, name, faction, branch, item_class, level, purchase_cost,
	hp, damage, accuracy, speed, acceleration, traverse_speed, armor, visible`

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, t.d.rebind(query), args...)
	return res, translate(err)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(query), args...)
	return rows, translate(err)
}

// insertID runs an INSERT ... RETURNING id.
func (t *tx) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := t.queryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

func (t *tx) CreateAccount(ctx context.Context, a progression.Account) (bool, error) {
	res, err := t.exec(ctx, `
		INSERT INTO accounts (id, username, currency, bonus_currency, free_xp, skill_rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Username, a.Currency, a.BonusCurrency, a.FreeXP, a.SkillRating, a.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *tx) Account(ctx context.Context, id int64) (progression.Account, error) {
	return t.account(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (t *tx) LockAccount(ctx context.Context, id int64) (progression.Account, error) {
	return t.account(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`+t.d.forUpdate(), id)
}

func (t *tx) account(ctx context.Context, query string, id int64) (progression.Account, error) {
	var a progression.Account
	err := t.queryRow(ctx, query, id).Scan(
		&a.ID, &a.Username, &a.Currency, &a.BonusCurrency, &a.FreeXP, &a.SkillRating, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return a, progression.ErrAccountNotFound
	}
	return a, err
}

func (t *tx) UpdateBalances(ctx context.Context, a progression.Account) error {
	_, err := t.exec(ctx, `
		UPDATE accounts
		SET currency = ?, bonus_currency = ?, free_xp = ?, skill_rating = ?
		WHERE id = ?
	`, a.Currency, a.BonusCurrency, a.FreeXP, a.SkillRating, a.ID)
	return err
}

func scanItem(row interface{ Scan(...any) error }) (progression.Item, error) {
	var it progression.Item
	err := row.Scan(
		&it.ID, &it.Code, &it.Name, &it.Faction, &it.Branch, &it.Class, &it.Level, &it.PurchaseCost,
		&it.Stats.HP, &it.Stats.Damage, &it.Stats.Accuracy, &it.Stats.Speed, &it.Stats.Acceleration,
		&it.Stats.TraverseSpeed, &it.Stats.Armor, &it.Visible,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return it, progression.ErrItemNotFound
	}
	return it, err
}

func (t *tx) ItemByID(ctx context.Context, id int64) (progression.Item, error) {
	return scanItem(t.queryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
}

func (t *tx) ItemByCode(ctx context.Context, code string) (progression.Item, error) {
	return scanItem(t.queryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE code = ?`, code))
}

func (t *tx) ItemByCodeFold(ctx context.Context, code string) (progression.Item, error) {
	it, err := t.ItemByCode(ctx, code)
	if !errors.Is(err, progression.ErrItemNotFound) {
		return it, err
	}
	return scanItem(t.queryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE lower(code) = lower(?)
		ORDER BY id
		LIMIT 1
	`, code))
}

func (t *tx) FallbackStarter(ctx context.Context) (progression.Item, error) {
	return scanItem(t.queryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		ORDER BY level ASC, visible DESC, purchase_cost ASC, id ASC
		LIMIT 1
	`))
}

func (t *tx) ResearchEdge(ctx context.Context, predecessorID, successorID int64) (progression.ResearchEdge, error) {
	var e progression.ResearchEdge
	err := t.queryRow(ctx, `
		SELECT id, predecessor_item_id, successor_item_id, required_xp
		FROM research_edges
		WHERE predecessor_item_id = ? AND successor_item_id = ?
	`, predecessorID, successorID).Scan(&e.ID, &e.PredecessorID, &e.SuccessorID, &e.RequiredXP)
	if errors.Is(err, sql.ErrNoRows) {
		return e, progression.ErrEdgeNotFound
	}
	return e, err
}

func (t *tx) Ownerships(ctx context.Context, accountID int64) ([]progression.Ownership, error) {
	rows, err := t.query(ctx, `
		SELECT o.id, o.account_id, o.item_id, i.code, i.name, o.xp, o.is_active, o.acquired_at
		FROM ownerships o
		JOIN items i ON i.id = o.item_id
		WHERE o.account_id = ?
		ORDER BY o.id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]progression.Ownership, 0, 8)
	for rows.Next() {
		var o progression.Ownership
		if err := rows.Scan(&o.ID, &o.AccountID, &o.ItemID, &o.ItemCode, &o.ItemName, &o.XP, &o.Active, &o.AcquiredAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *tx) InsertOwnership(ctx context.Context, o progression.Ownership) (int64, error) {
	return t.insertID(ctx, `
		INSERT INTO ownerships (account_id, item_id, xp, is_active, acquired_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, o.AccountID, o.ItemID, o.XP, o.Active, o.AcquiredAt)
}

func (t *tx) SetOwnershipActive(ctx context.Context, ownershipID int64, active bool) error {
	_, err := t.exec(ctx, `UPDATE ownerships SET is_active = ? WHERE id = ?`, active, ownershipID)
	return err
}

func (t *tx) SetOwnershipXP(ctx context.Context, ownershipID, xp int64) error {
	_, err := t.exec(ctx, `UPDATE ownerships SET xp = ? WHERE id = ?`, xp, ownershipID)
	return err
}

func (t *tx) DeleteOwnership(ctx context.Context, ownershipID int64) error {
	_, err := t.exec(ctx, `DELETE FROM ownerships WHERE id = ?`, ownershipID)
	return err
}

func (t *tx) HasUnlock(ctx context.Context, accountID, itemID int64) (bool, error) {
	var one int
	err := t.queryRow(ctx, `SELECT 1 FROM unlocks WHERE account_id = ? AND item_id = ?`, accountID, itemID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *tx) InsertUnlock(ctx context.Context, accountID, itemID int64, at time.Time) (bool, error) {
	res, err := t.exec(ctx, `
		INSERT INTO unlocks (account_id, item_id, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (account_id, item_id) DO NOTHING
	`, accountID, itemID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *tx) Unlocks(ctx context.Context, accountID int64) ([]progression.Unlock, error) {
	rows, err := t.query(ctx, `
		SELECT u.account_id, u.item_id, i.code, u.unlocked_at
		FROM unlocks u
		JOIN items i ON i.id = u.item_id
		WHERE u.account_id = ?
		ORDER BY u.unlocked_at, u.item_id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]progression.Unlock, 0, 8)
	for rows.Next() {
		var u progression.Unlock
		if err := rows.Scan(&u.AccountID, &u.ItemID, &u.ItemCode, &u.UnlockedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (t *tx) InsertMatch(ctx context.Context, m progression.Match) (int64, error) {
	return t.insertID(ctx, `
		INSERT INTO matches (map_name, started_at)
		VALUES (?, ?)
		RETURNING id
	`, m.Map, m.StartedAt)
}

func (t *tx) Match(ctx context.Context, id int64) (progression.Match, error) {
	return t.match(ctx, `SELECT id, map_name, started_at, ended_at FROM matches WHERE id = ?`, id)
}

func (t *tx) LockMatch(ctx context.Context, id int64) (progression.Match, error) {
	return t.match(ctx, `SELECT id, map_name, started_at, ended_at FROM matches WHERE id = ?`+t.d.forUpdate(), id)
}

func (t *tx) match(ctx context.Context, query string, id int64) (progression.Match, error) {
	var m progression.Match
	var ended sql.NullTime
	err := t.queryRow(ctx, query, id).Scan(&m.ID, &m.Map, &m.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return m, progression.ErrMatchNotFound
	}
	if err != nil {
		return m, err
	}
	if ended.Valid {
		at := ended.Time
		m.EndedAt = &at
	}
	return m, nil
}

func (t *tx) CloseMatch(ctx context.Context, id int64, at time.Time) error {
	_, err := t.exec(ctx, `UPDATE matches SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, at, id)
	return err
}

func (t *tx) Participants(ctx context.Context, matchID int64) ([]progression.Participant, error) {
	rows, err := t.query(ctx, `
		SELECT p.id, p.match_id, p.account_id, p.item_id, i.code, p.team, p.result,
			p.kills, p.damage, p.xp_earned, p.mmr_delta, p.rating_before, p.created_at
		FROM match_participants p
		JOIN items i ON i.id = p.item_id
		WHERE p.match_id = ?
		ORDER BY p.id
	`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]progression.Participant, 0, 8)
	for rows.Next() {
		var p progression.Participant
		var result string
		if err := rows.Scan(
			&p.ID, &p.MatchID, &p.AccountID, &p.ItemID, &p.ItemCode, &p.Team, &result,
			&p.Kills, &p.Damage, &p.XPEarned, &p.MMRDelta, &p.RatingBefore, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.Result = progression.Result(result)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) InsertParticipant(ctx context.Context, p progression.Participant) (int64, error) {
	return t.insertID(ctx, `
		INSERT INTO match_participants (
			match_id, account_id, item_id, team, result, kills, damage,
			xp_earned, mmr_delta, rating_before, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, p.MatchID, p.AccountID, p.ItemID, p.Team, string(p.Result), p.Kills, p.Damage,
		p.XPEarned, p.MMRDelta, p.RatingBefore, p.CreatedAt)
}

func (t *tx) AppendLedger(ctx context.Context, entries []progression.LedgerEntry) error {
	for _, e := range entries {
		var itemID sql.NullInt64
		if e.ItemID > 0 {
			itemID = sql.NullInt64{Int64: e.ItemID, Valid: true}
		}
		if _, err := t.exec(ctx, `
			INSERT INTO ledger_entries (
				group_id, account_id, reason, currency_delta, free_xp_delta,
				rating_delta, item_id, item_xp_delta, created_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.GroupID, e.AccountID, e.Reason, e.CurrencyDelta, e.FreeXPDelta,
			e.RatingDelta, itemID, e.ItemXPDelta, e.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Ledger(ctx context.Context, accountID int64, limit int) ([]progression.LedgerEntry, error) {
	rows, err := t.query(ctx, `
		SELECT id, group_id, account_id, reason, currency_delta, free_xp_delta,
			rating_delta, item_id, item_xp_delta, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]progression.LedgerEntry, 0, limit)
	for rows.Next() {
		var e progression.LedgerEntry
		var itemID sql.NullInt64
		if err := rows.Scan(
			&e.ID, &e.GroupID, &e.AccountID, &e.Reason, &e.CurrencyDelta, &e.FreeXPDelta,
			&e.RatingDelta, &itemID, &e.ItemXPDelta, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.ItemID = itemID.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}
