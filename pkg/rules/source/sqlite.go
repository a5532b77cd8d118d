package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/plugin"
	"forgeline/anvil/pkg/rules/validator"
)

// SQLiteStore persists rules as JSON documents in SQLite. Rules are
// validated against the plugin registry on create and update, so nothing
// invalid ever reaches the engine.
//
// The store uses WAL mode and a single writer connection.
type SQLiteStore struct {
	db  *sql.DB
	reg *plugin.Registry

	closeOnce sync.Once

	createStmt *sql.Stmt
	updateStmt *sql.Stmt
	getStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite rule store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Registry resolves ops during create and update validation.
	Registry *plugin.Registry

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (creating if needed) a rule store at dbPath.
func NewSQLiteStore(dbPath string, reg *plugin.Registry) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath, Registry: reg})
}

// NewSQLiteStoreWithConfig opens a rule store with custom configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db, reg: cfg.Registry}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inspection_rules (
		uuid TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		priority INTEGER NOT NULL,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_phase ON inspection_rules(phase);
	CREATE INDEX IF NOT EXISTS idx_rules_priority ON inspection_rules(priority);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.createStmt, err = s.db.Prepare(`
		INSERT INTO inspection_rules (uuid, phase, priority, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare create statement: %w", err)
	}

	s.updateStmt, err = s.db.Prepare(`
		UPDATE inspection_rules
		SET phase = ?, priority = ?, document = ?, updated_at = ?
		WHERE uuid = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT document FROM inspection_rules WHERE uuid = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM inspection_rules WHERE uuid = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// List returns rules matching the filters, ordered and paginated in SQL.
func (s *SQLiteStore) List(ctx context.Context, f Filters) ([]*rules.Rule, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	var args []interface{}
	sb.WriteString("SELECT document FROM inspection_rules")
	if f.Phase != "" {
		sb.WriteString(" WHERE phase = ?")
		args = append(args, string(f.Phase))
	}

	dir := "ASC"
	if f.SortDir == SortDesc {
		dir = "DESC"
	}
	switch f.SortKey {
	case SortByPriority:
		fmt.Fprintf(&sb, " ORDER BY priority %s, uuid %s", dir, dir)
	case SortByCreatedAt:
		fmt.Fprintf(&sb, " ORDER BY created_at %s, uuid %s", dir, dir)
	case SortByUUID:
		fmt.Fprintf(&sb, " ORDER BY uuid %s", dir)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule, err := decodeRule([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	// Marker pagination happens after ordering, so it slices the same
	// sequence a client previously saw.
	if f.Marker != "" {
		idx := -1
		for i, r := range out {
			if r.UUID == f.Marker {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &NotFoundError{UUID: f.Marker}
		}
		out = out[idx+1:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Get returns one rule by UUID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*rules.Rule, error) {
	var doc string
	err := s.getStmt.QueryRowContext(ctx, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{UUID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule %s: %w", id, err)
	}
	return decodeRule([]byte(doc))
}

// Create validates and persists a new rule.
func (s *SQLiteStore) Create(ctx context.Context, raw map[string]interface{}) (*rules.Rule, error) {
	rule, err := validator.Validate(s.reg, raw)
	if err != nil {
		return nil, err
	}
	if rule.UUID == "" {
		rule.UUID = uuid.NewString()
	}

	doc, err := encodeRule(rule)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	_, err = s.createStmt.ExecContext(ctx, rule.UUID, string(rule.Phase), rule.Priority, doc, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, &ConflictError{UUID: rule.UUID}
		}
		return nil, fmt.Errorf("failed to store rule %s: %w", rule.UUID, err)
	}
	return rule, nil
}

// Update validates and replaces an existing rule. The stored UUID wins
// over any uuid in the mapping.
func (s *SQLiteStore) Update(ctx context.Context, id string, raw map[string]interface{}) (*rules.Rule, error) {
	rule, err := validator.Validate(s.reg, raw)
	if err != nil {
		return nil, err
	}
	rule.UUID = id

	doc, err := encodeRule(rule)
	if err != nil {
		return nil, err
	}
	res, err := s.updateStmt.ExecContext(ctx, string(rule.Phase), rule.Priority, doc, time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update rule %s: %w", id, err)
	}
	if n == 0 {
		return nil, &NotFoundError{UUID: id}
	}
	return rule, nil
}

// Delete removes one rule by UUID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.deleteStmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	if n == 0 {
		return &NotFoundError{UUID: id}
	}
	return nil
}

// DeleteAll removes every stored rule.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM inspection_rules"); err != nil {
		return fmt.Errorf("failed to delete rules: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.createStmt, s.updateStmt, s.getStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

// The on-disk document mirrors the wire shape of a rule.
type ruleDocument struct {
	UUID        string         `json:"uuid"`
	Priority    int            `json:"priority"`
	Description string         `json:"description,omitempty"`
	Phase       string         `json:"phase"`
	Sensitive   bool           `json:"sensitive,omitempty"`
	Conditions  []stepDocument `json:"conditions,omitempty"`
	Actions     []stepDocument `json:"actions"`
}

type stepDocument struct {
	Op       string      `json:"op"`
	Args     interface{} `json:"args,omitempty"`
	Multiple string      `json:"multiple,omitempty"`
	Loop     interface{} `json:"loop,omitempty"`
}

func encodeRule(rule *rules.Rule) ([]byte, error) {
	doc := ruleDocument{
		UUID:        rule.UUID,
		Priority:    rule.Priority,
		Description: rule.Description,
		Phase:       string(rule.Phase),
		Sensitive:   rule.Sensitive,
	}
	for _, c := range rule.Conditions {
		doc.Conditions = append(doc.Conditions, stepDocument{
			Op: c.Op, Args: c.Args, Multiple: string(c.Multiple), Loop: c.Loop,
		})
	}
	for _, a := range rule.Actions {
		doc.Actions = append(doc.Actions, stepDocument{Op: a.Op, Args: a.Args, Loop: a.Loop})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule %s: %w", rule.Ident(), err)
	}
	return data, nil
}

func decodeRule(data []byte) (*rules.Rule, error) {
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored rule: %w", err)
	}
	rule := &rules.Rule{
		UUID:        doc.UUID,
		Priority:    doc.Priority,
		Description: doc.Description,
		Phase:       rules.Phase(doc.Phase),
		Sensitive:   doc.Sensitive,
	}
	for _, c := range doc.Conditions {
		cond := &rules.Condition{Op: c.Op, Args: c.Args, Multiple: rules.Multiple(c.Multiple), Loop: c.Loop}
		if cond.Multiple == "" {
			cond.Multiple = rules.MultipleAny
		}
		rule.Conditions = append(rule.Conditions, cond)
	}
	for _, a := range doc.Actions {
		rule.Actions = append(rule.Actions, &rules.Action{Op: a.Op, Args: a.Args, Loop: a.Loop})
	}
	return rule, nil
}
