package publish

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// dialect captures the differences between the SQL targets.
type dialect struct {
	driver string
	// keyType is the column type of the primary key columns.
	keyType string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	sqliteDialect   = dialect{driver: "sqlite", keyType: "TEXT"}
	postgresDialect = dialect{driver: "postgres", keyType: "TEXT", numbered: true}
	mysqlDialect    = dialect{driver: "mysql", keyType: "VARCHAR(191)"}
)

// rebind rewrites ? placeholders for drivers that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func (d dialect) createTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		document_id %[2]s NOT NULL,
		block_id %[2]s NOT NULL,
		document_title TEXT NOT NULL,
		parent_id %[2]s NOT NULL,
		sort_order INTEGER NOT NULL,
		block_type TEXT NOT NULL,
		text TEXT NOT NULL,
		ref TEXT NOT NULL,
		attributes_json TEXT NOT NULL,
		annotations_json TEXT NOT NULL,
		published_at TEXT NOT NULL,
		PRIMARY KEY (document_id, block_id)
	)`, table, d.keyType)
}

// sqlTarget is the shared implementation for SQLite, Postgres and MySQL.
type sqlTarget struct {
	name    string
	table   string
	dialect dialect
	db      *sql.DB
	logger  *zap.Logger

	mu      sync.Mutex
	created bool
}

func newSQLTarget(cfg TargetConfig, d dialect, dsn string, logger *zap.Logger) (*sqlTarget, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlTarget{name: cfg.Name, table: cfg.table(), dialect: d, db: db, logger: logger}, nil
}

func (t *sqlTarget) Name() string { return t.name }

func (t *sqlTarget) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return t.db.PingContext(ctx)
}

func (t *sqlTarget) ensureSchema(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.created {
		return nil
	}
	if _, err := t.db.ExecContext(ctx, t.dialect.createTable(t.table)); err != nil {
		return fmt.Errorf("create table %s: %w", t.table, err)
	}
	t.created = true
	return nil
}

func (t *sqlTarget) Publish(ctx context.Context, snap Snapshot) (int, error) {
	if err := t.ensureSchema(ctx); err != nil {
		return 0, err
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	del := t.dialect.rebind(`DELETE FROM ` + t.table + ` WHERE document_id = ?`)
	if _, err := tx.ExecContext(ctx, del, snap.Document.ID); err != nil {
		return 0, fmt.Errorf("clear document: %w", err)
	}

	ins := t.dialect.rebind(`INSERT INTO ` + t.table + ` (document_id, block_id, document_title, parent_id, sort_order,
		block_type, text, ref, attributes_json, annotations_json, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	publishedAt := snap.PublishedAt.UTC().Format(time.RFC3339Nano)
	for _, b := range snap.Blocks {
		attrs, err := json.Marshal(b.Attributes)
		if err != nil {
			return 0, fmt.Errorf("block %s attributes: %w", b.ID, err)
		}
		anns, err := json.Marshal(b.Annotations)
		if err != nil {
			return 0, fmt.Errorf("block %s annotations: %w", b.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			snap.Document.ID, b.ID, snap.Document.Title, b.ParentID, b.Order,
			b.Type, b.Text, b.Ref, string(attrs), string(anns), publishedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert block %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	t.logger.Debug("document_published",
		zap.String("document", snap.Document.ID),
		zap.Int("blocks", len(snap.Blocks)),
	)
	return len(snap.Blocks), nil
}

func (t *sqlTarget) Close() error {
	return t.db.Close()
}
