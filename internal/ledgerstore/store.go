// Package ledgerstore mirrors the causal chain to durable storage: an
// append-only NDJSON file plus a SQLite index for query-by-plan/intent,
// using database/sql against modernc.org/sqlite.
package ledgerstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/antigravity-dev/ccos/internal/causalchain"
)

const schema = `
CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	parent_action_id TEXT NOT NULL DEFAULT '',
	intent_id TEXT NOT NULL DEFAULT '',
	plan_id TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	capability_id TEXT NOT NULL DEFAULT '',
	function_name TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL DEFAULT 1,
	timestamp DATETIME NOT NULL,
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_intent ON actions(intent_id);
CREATE INDEX IF NOT EXISTS idx_actions_plan ON actions(plan_id);
CREATE INDEX IF NOT EXISTS idx_actions_capability ON actions(capability_id);
CREATE INDEX IF NOT EXISTS idx_actions_parent ON actions(parent_action_id);
`

// Store persists causal chain actions to a SQLite file and an append-only
// NDJSON log, implementing causalchain.Persister.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	ndjson  *os.File
}

// Open creates or reuses a SQLite database at sqlitePath and an NDJSON log
// at ndjsonPath.
func Open(sqlitePath, ndjsonPath string) (*Store, error) {
	db, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledgerstore: apply schema: %w", err)
	}
	f, err := os.OpenFile(ndjsonPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledgerstore: open ndjson log: %w", err)
	}
	return &Store{db: db, ndjson: f}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ferr := s.ndjson.Close()
	derr := s.db.Close()
	if derr != nil {
		return derr
	}
	return ferr
}

type actionRecord struct {
	Action *causalchain.Action `json:"action"`
	Result *causalchain.ExecutionResult `json:"result,omitempty"`
}

// Append implements causalchain.Persister.
func (s *Store) Append(a *causalchain.Action) error {
	payload, err := json.Marshal(actionRecord{Action: a, Result: a.Result})
	if err != nil {
		return fmt.Errorf("ledgerstore: marshal action: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	success := 1
	if a.Result != nil && !a.Result.Success {
		success = 0
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO actions (id, parent_action_id, intent_id, plan_id, type, capability_id, function_name, success, timestamp, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ParentActionID, a.IntentID, a.PlanID, string(a.Type), a.CapabilityID, a.FunctionName, success, a.Timestamp, string(payload),
	); err != nil {
		return fmt.Errorf("ledgerstore: insert action %s: %w", a.ID, err)
	}

	if _, err := s.ndjson.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("ledgerstore: append ndjson: %w", err)
	}
	return nil
}

// ActionsForPlan returns the persisted action IDs for a plan, in insertion
// order, used to rehydrate a CausalChain snapshot on process restart.
func (s *Store) ActionsForPlan(planID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM actions WHERE plan_id = ? ORDER BY timestamp ASC`, planID)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: query plan actions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
