package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"armory/internal/catalog"
	"armory/internal/progression"
)

type ReconcileResult struct {
	Factions int `json:"factions"`
	Items    int `json:"items"`
	Edges    int `json:"edges"`
}

// Reconcile upserts the catalog in one transaction: factions by code, items
// by code, edges by predecessor/successor pair. Rows missing from c are left
// in place so existing ownerships keep their item.
func (s *Store) Reconcile(ctx context.Context, c catalog.Catalog) (ReconcileResult, error) {
	if err := c.Validate(); err != nil {
		return ReconcileResult{}, err
	}
	var out ReconcileResult
	err := s.withTx(ctx, func(sqlTx *sql.Tx) error {
		out = ReconcileResult{}
		t := &tx{tx: sqlTx, d: s.dialect}

		for _, f := range c.Factions {
			if _, err := t.exec(ctx, `
				INSERT INTO factions (code, name, description)
				VALUES (?, ?, ?)
				ON CONFLICT (code) DO UPDATE
				SET name = excluded.name, description = excluded.description
			`, f.Code, f.Name, f.Description); err != nil {
				return fmt.Errorf("upsert faction %s: %w", f.Code, err)
			}
			out.Factions++
		}

		ids := make(map[string]int64, len(c.Items))
		for _, it := range c.Items {
			id, err := t.insertID(ctx, `
				INSERT INTO items (
					code, name, faction, branch, item_class, level, purchase_cost,
					hp, damage, accuracy, speed, acceleration, traverse_speed, armor, visible
				)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (code) DO UPDATE SET
					name = excluded.name,
					faction = excluded.faction,
					branch = excluded.branch,
					item_class = excluded.item_class,
					level = excluded.level,
					purchase_cost = excluded.purchase_cost,
					hp = excluded.hp,
					damage = excluded.damage,
					accuracy = excluded.accuracy,
					speed = excluded.speed,
					acceleration = excluded.acceleration,
					traverse_speed = excluded.traverse_speed,
					armor = excluded.armor,
					visible = excluded.visible
				RETURNING id
			`, it.Code, it.Name, it.Faction, it.Branch, it.Class, it.Level, it.PurchaseCost,
				it.Stats.HP, it.Stats.Damage, it.Stats.Accuracy, it.Stats.Speed, it.Stats.Acceleration,
				it.Stats.TraverseSpeed, it.Stats.Armor, it.Visible)
			if err != nil {
				return fmt.Errorf("upsert item %s: %w", it.Code, err)
			}
			ids[it.Code] = id
			out.Items++
		}

		for _, e := range c.Edges {
			pred, okPred := ids[e.Predecessor]
			succ, okSucc := ids[e.Successor]
			if !okPred || !okSucc {
				return fmt.Errorf("edge %s -> %s references an item outside the catalog", e.Predecessor, e.Successor)
			}
			if _, err := t.exec(ctx, `
				INSERT INTO research_edges (predecessor_item_id, successor_item_id, required_xp)
				VALUES (?, ?, ?)
				ON CONFLICT (predecessor_item_id, successor_item_id) DO UPDATE
				SET required_xp = excluded.required_xp
			`, pred, succ, e.RequiredXP); err != nil {
				return fmt.Errorf("upsert edge %s -> %s: %w", e.Predecessor, e.Successor, err)
			}
			out.Edges++
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	s.log.Info("catalog reconciled", "factions", out.Factions, "items", out.Items, "edges", out.Edges)
	return out, nil
}

func (s *Store) CatalogItems(ctx context.Context) ([]progression.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE visible
		ORDER BY faction, level, purchase_cost, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]progression.Item, 0, 16)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ResearchEdges(ctx context.Context) ([]progression.ResearchEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, predecessor_item_id, successor_item_id, required_xp
		FROM research_edges
		ORDER BY predecessor_item_id, required_xp, successor_item_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]progression.ResearchEdge, 0, 16)
	for rows.Next() {
		var e progression.ResearchEdge
		if err := rows.Scan(&e.ID, &e.PredecessorID, &e.SuccessorID, &e.RequiredXP); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
