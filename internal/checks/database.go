package checks

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/georgysavva/scany/v2/pgxscan"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"

	"deployctl/internal/config"
)

// DatabaseCheck probes the configured relational database. postgresql and
// mysql get a live connect+ping, sqlite3 is a data-path check, oracle is
// reported as skipped since no driver ships with this tooling.
type DatabaseCheck struct {
	cfg config.DatabaseConfig
}

func NewDatabaseCheck(cfg config.DatabaseConfig) *DatabaseCheck {
	return &DatabaseCheck{cfg: cfg}
}

func (c *DatabaseCheck) Name() string {
	return "database/" + c.cfg.Engine
}

func (c *DatabaseCheck) Run(ctx context.Context) (string, error) {
	switch c.cfg.Engine {
	case config.EnginePostgres:
		return c.checkPostgres(ctx)
	case config.EngineMySQL:
		return c.checkMySQL(ctx)
	case config.EngineSQLite:
		return c.checkSQLite()
	case config.EngineOracle:
		return "", fmt.Errorf("%w: no oracle driver, validate connectivity manually", ErrSkipped)
	default:
		return "", fmt.Errorf("unknown database engine %q", c.cfg.Engine)
	}
}

// pgServerInfo is scanned from the probe query.
type pgServerInfo struct {
	Version  string `db:"version"`
	Database string `db:"database"`
}

func (c *DatabaseCheck) checkPostgres(ctx context.Context) (string, error) {
	dsn, err := c.cfg.DSN()
	if err != nil {
		return "", err
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return "", fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close(ctx)

	if err := conn.Ping(ctx); err != nil {
		return "", fmt.Errorf("failed to ping postgres: %w", err)
	}

	var info pgServerInfo
	query := `SELECT version() AS version, current_database() AS database`
	if err := pgxscan.Get(ctx, conn, &info, query); err != nil {
		return "", fmt.Errorf("failed to query server info: %w", err)
	}

	return fmt.Sprintf("%s, database %q", info.Version, info.Database), nil
}

func (c *DatabaseCheck) checkMySQL(ctx context.Context) (string, error) {
	dsn, err := c.cfg.DSN()
	if err != nil {
		return "", err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return "", fmt.Errorf("failed to open mysql connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return "", fmt.Errorf("failed to ping mysql: %w", err)
	}

	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}

	return "mysql " + version, nil
}

func (c *DatabaseCheck) checkSQLite() (string, error) {
	info, err := os.Stat(c.cfg.DataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("sqlite3 data path %s does not exist", c.cfg.DataPath)
		}
		return "", fmt.Errorf("failed to stat sqlite3 data path: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("sqlite3 data path %s is a directory", c.cfg.DataPath)
	}
	return fmt.Sprintf("data file present (%d bytes)", info.Size()), nil
}
