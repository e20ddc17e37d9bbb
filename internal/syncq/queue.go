package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Report is a match result that could not reach the API. Replaying it is
// safe: the server accepts one report per account and match.
type Report struct {
	MatchID  int64     `json:"match_id"`
	ItemCode string    `json:"item_code"`
	Team     int       `json:"team"`
	Result   string    `json:"result"`
	Kills    int       `json:"kills"`
	Damage   int       `json:"damage"`
	QueuedAt time.Time `json:"queued_at"`
}

type Queue struct {
	path string
}

func Open(dir string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Queue{path: filepath.Join(dir, "queue.json")}, nil
}

func (q *Queue) Load() ([]Report, error) {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Report{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Report{}, nil
	}
	var out []Report
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queue) Save(reports []Report) error {
	if len(reports) == 0 {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	raw, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(q.path, raw, 0o600)
}

// Push appends r unless a report for the same match is already queued.
func (q *Queue) Push(r Report) (bool, error) {
	reports, err := q.Load()
	if err != nil {
		return false, err
	}
	for _, existing := range reports {
		if existing.MatchID == r.MatchID {
			return false, nil
		}
	}
	if r.QueuedAt.IsZero() {
		r.QueuedAt = time.Now().UTC()
	}
	return true, q.Save(append(reports, r))
}
