// Package history keeps the inspection audit trail: one record per engine
// batch, queryable per node, with scheduled retention pruning.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/engine"
)

// Record is one stored audit entry.
type Record struct {
	ID           string
	NodeUUID     string
	Phase        rules.Phase
	RulesMatched int
	Outcome      string
	Detail       string
	CreatedAt    time.Time
}

// StoreConfig configures the history store.
type StoreConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the connection pool ceiling. Default: 10.
	MaxOpenConns int

	// MaxIdleConns is the idle connection count. Default: 5.
	MaxIdleConns int

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// DefaultStoreConfig returns the default history store configuration.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Path:         "data/history.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

// Store persists audit records in SQLite. It implements engine.Recorder.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	closeOnce sync.Once

	insertStmt *sql.Stmt
	listStmt   *sql.Stmt
	pruneStmt  *sql.Stmt
}

// NewStore opens (creating if needed) a history store.
func NewStore(config *StoreConfig, logger *slog.Logger) (*Store, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("history db path cannot be empty")
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d",
		config.Path, int(config.BusyTimeout.Milliseconds()))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare history statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inspection_history (
		id TEXT PRIMARY KEY,
		node_uuid TEXT NOT NULL,
		phase TEXT NOT NULL,
		rules_matched INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_node ON inspection_history(node_uuid);
	CREATE INDEX IF NOT EXISTS idx_history_created ON inspection_history(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO inspection_history (id, node_uuid, phase, rules_matched, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT id, node_uuid, phase, rules_matched, outcome, detail, created_at
		FROM inspection_history
		WHERE node_uuid = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM inspection_history WHERE created_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// RecordApply stores one audit entry for a finished engine batch.
func (s *Store) RecordApply(ctx context.Context, entry engine.ApplyRecord) error {
	_, err := s.insertStmt.ExecContext(ctx,
		uuid.NewString(),
		entry.NodeUUID,
		string(entry.Phase),
		entry.RulesMatched,
		entry.Outcome,
		entry.Detail,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record history for node %s: %w", entry.NodeUUID, err)
	}
	return nil
}

// ListByNode returns a node's audit entries, newest first. A limit of
// zero returns up to 100 entries.
func (s *Store) ListByNode(ctx context.Context, nodeUUID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.listStmt.QueryContext(ctx, nodeUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for node %s: %w", nodeUUID, err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var phase string
		var created int64
		if err := rows.Scan(&rec.ID, &rec.NodeUUID, &phase, &rec.RulesMatched,
			&rec.Outcome, &rec.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		rec.Phase = rules.Phase(phase)
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list history for node %s: %w", nodeUUID, err)
	}
	return out, nil
}

// Prune deletes entries older than the retention window and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.pruneStmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return deleted, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.insertStmt, s.listStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
