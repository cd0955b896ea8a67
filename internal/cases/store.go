package cases

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists quarantine cases in SQLite so the review queue survives
// restarts and the dashboard can page through history.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open case store: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping case store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quarantine_cases (
		case_id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		triggering_score REAL NOT NULL,
		original_roles TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		role_apply_failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_cases_scope ON quarantine_cases(scope_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_cases_status ON quarantine_cases(scope_id, status);

	-- Backstop for the one-pending-case-per-actor invariant.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cases_pending_actor
		ON quarantine_cases(scope_id, actor_id) WHERE status = 'pending';
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new pending case. A unique-index violation means another
// pending case already exists for the actor and is reported as
// ErrConcurrentModification.
func (s *Store) Create(c *Case) error {
	roles, err := json.Marshal(c.OriginalRoles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO quarantine_cases
		 (case_id, scope_id, actor_id, reason, triggering_score, original_roles, status, role_apply_failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ScopeID, c.ActorID, c.ReasonSummary, c.TriggeringScore,
		string(roles), string(c.Status), boolToInt(c.RoleApplyFailed), c.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pending case exists for actor %s: %w", c.ActorID, ErrConcurrentModification)
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// Get returns one case by ID.
func (s *Store) Get(caseID string) (*Case, error) {
	row := s.db.QueryRow(
		`SELECT case_id, scope_id, actor_id, reason, triggering_score, original_roles,
		        status, role_apply_failed, created_at, reviewed_by, reviewed_at, notes
		 FROM quarantine_cases WHERE case_id = ?`, caseID)
	return scanCase(row)
}

// List returns cases for a scope, newest first. An empty status returns all.
func (s *Store) List(scopeID string, status Status) ([]*Case, error) {
	query := `SELECT case_id, scope_id, actor_id, reason, triggering_score, original_roles,
	                 status, role_apply_failed, created_at, reviewed_by, reviewed_at, notes
	          FROM quarantine_cases WHERE scope_id = ?`
	args := []interface{}{scopeID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Pending returns every pending case across all scopes, used to rebuild the
// in-memory latches at startup.
func (s *Store) Pending() ([]*Case, error) {
	rows, err := s.db.Query(
		`SELECT case_id, scope_id, actor_id, reason, triggering_score, original_roles,
		        status, role_apply_failed, created_at, reviewed_by, reviewed_at, notes
		 FROM quarantine_cases WHERE status = 'pending'`)
	if err != nil {
		return nil, fmt.Errorf("load pending cases: %w", err)
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Resolve commits a pending case to a terminal status. The WHERE guard
// makes the first writer win; a second resolve finds zero rows and gets
// ErrAlreadyResolved (or ErrCaseNotFound if the ID never existed).
func (s *Store) Resolve(caseID string, status Status, reviewedBy, notes string, reviewedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("resolve to non-terminal status %q", status)
	}

	res, err := s.db.Exec(
		`UPDATE quarantine_cases
		 SET status = ?, reviewed_by = ?, reviewed_at = ?, notes = ?
		 WHERE case_id = ? AND status = 'pending'`,
		string(status), reviewedBy, reviewedAt.Unix(), notes, caseID,
	)
	if err != nil {
		return fmt.Errorf("resolve case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve case: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(caseID); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

// MarkRoleApplyFailed records that the quarantine role could not be applied.
func (s *Store) MarkRoleApplyFailed(caseID, note string) error {
	_, err := s.db.Exec(
		`UPDATE quarantine_cases
		 SET role_apply_failed = 1,
		     notes = CASE WHEN notes = '' THEN ? ELSE notes || '; ' || ? END
		 WHERE case_id = ?`,
		note, note, caseID,
	)
	if err != nil {
		return fmt.Errorf("mark role apply failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCase(row rowScanner) (*Case, error) {
	var (
		c          Case
		roles      string
		status     string
		failed     int
		createdAt  int64
		reviewedAt int64
	)
	err := row.Scan(&c.ID, &c.ScopeID, &c.ActorID, &c.ReasonSummary, &c.TriggeringScore,
		&roles, &status, &failed, &createdAt, &c.ReviewedBy, &reviewedAt, &c.Notes)
	if err == sql.ErrNoRows {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan case: %w", err)
	}

	if err := json.Unmarshal([]byte(roles), &c.OriginalRoles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	c.Status = Status(status)
	c.RoleApplyFailed = failed != 0
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	if reviewedAt != 0 {
		c.ReviewedAt = time.Unix(reviewedAt, 0).UTC()
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// modernc sqlite surfaces constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
