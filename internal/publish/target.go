// Package publish mirrors documents into external databases.
//
// A Target receives a full snapshot of one document and replaces whatever it
// held for that document before. Blocks are written in wire form: text plus
// the annotations JSON, so readers can decode them with the inline package.
package publish

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"hmdoc/internal/domain"
)

// Supported target drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMongoDB  = "mongodb"
)

// DefaultTable is the table (or collection) blocks are written to.
const DefaultTable = "hm_blocks"

// TargetConfig describes one publish destination.
type TargetConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Driver   string            `yaml:"driver" json:"driver"`
	Host     string            `yaml:"host" json:"host"` // file path for sqlite, may be a full URI for mongodb
	Port     int               `yaml:"port" json:"port"`
	Database string            `yaml:"database" json:"database"`
	Username string            `yaml:"username" json:"username"`
	Password string            `yaml:"password" json:"-"`
	SSLMode  string            `yaml:"ssl_mode" json:"sslMode"`
	Table    string            `yaml:"table" json:"table"`
	Options  map[string]string `yaml:"options" json:"options,omitempty"`
}

func (c TargetConfig) table() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Snapshot is the content of one document at publish time.
type Snapshot struct {
	Document    domain.Document
	Blocks      []domain.StoredBlock
	PublishedAt time.Time
}

// Target is an external store documents are published to.
type Target interface {
	Name() string
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Publish replaces the target's copy of snap.Document and returns the
	// number of blocks written.
	Publish(ctx context.Context, snap Snapshot) (int, error)
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open creates the Target described by cfg.
func Open(cfg TargetConfig, logger *zap.Logger) (Target, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Driver
	}
	if !identRe.MatchString(cfg.table()) {
		return nil, fmt.Errorf("target %s: invalid table name %q", cfg.Name, cfg.table())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("publish").With(zap.String("target", cfg.Name))

	switch cfg.Driver {
	case DriverSQLite:
		return newSQLiteTarget(cfg, logger)
	case DriverMySQL:
		return newSQLTarget(cfg, mysqlDialect, buildMySQLDSN(cfg), logger)
	case DriverPostgres:
		return newSQLTarget(cfg, postgresDialect, buildPostgresDSN(cfg), logger)
	case DriverMongoDB:
		return newMongoTarget(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

// OpenAll opens every configured target. On error the targets opened so far
// are closed.
func OpenAll(cfgs []TargetConfig, logger *zap.Logger) ([]Target, error) {
	targets := make([]Target, 0, len(cfgs))
	for _, cfg := range cfgs {
		t, err := Open(cfg, logger)
		if err != nil {
			for _, opened := range targets {
				opened.Close()
			}
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}
