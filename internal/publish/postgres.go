package publish

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// buildPostgresDSN constructs a Postgres connection string from a TargetConfig.
func buildPostgresDSN(cfg TargetConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pqQuote(cfg.Host), port, pqQuote(cfg.Username), pqQuote(cfg.Password), pqQuote(cfg.Database), pqQuote(sslMode),
	)
}

var pqEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pqQuote renders a value for a key=value connection string.
func pqQuote(v string) string {
	return "'" + pqEscaper.Replace(v) + "'"
}
