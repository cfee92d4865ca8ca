package publish

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// newSQLiteTarget publishes into a SQLite file at cfg.Host.
func newSQLiteTarget(cfg TargetConfig, logger *zap.Logger) (*sqlTarget, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("target %s: sqlite needs a file path in host", cfg.Name)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Host), 0755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}
	dsn := cfg.Host + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	t, err := newSQLTarget(cfg, sqliteDialect, dsn, logger)
	if err != nil {
		return nil, err
	}
	t.db.SetMaxOpenConns(1)
	return t, nil
}
