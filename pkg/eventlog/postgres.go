package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/eventlog/migrations"
)

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	// DSN is a pgx connection string or URL.
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// MaxConns caps the pool size. Zero uses the pgxpool default.
	MaxConns int32 `mapstructure:"max_conns" yaml:"max_conns"`

	// Retention bounds event lifetime. Zero means DefaultRetention.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// PostgresLog persists events in a PostgreSQL table. Suited to
// deployments already running postgres for the control-plane store;
// retention is enforced by the background prune pass.
type PostgresLog struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

// NewPostgresLog runs migrations and opens the connection pool.
func NewPostgresLog(ctx context.Context, cfg PostgresConfig) (*PostgresLog, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	if err := runMigrations(ctx, cfg.DSN); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid event log DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event log pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping event log database: %w", err)
	}

	return &PostgresLog{pool: pool, retention: cfg.Retention}, nil
}

// runMigrations applies the embedded schema. golang-migrate takes a
// postgres advisory lock, so concurrent startups are safe.
func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "event_log_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("event log migration failed: %w", err)
	}
	return nil
}

// Append implements Log.
func (l *PostgresLog) Append(ctx context.Context, entry Entry) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO event_log (id, event_type, payload, timestamp) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.Type, []byte(entry.Payload), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append event %d: %w", entry.ID, err)
	}
	return nil
}

// Read implements Log.
func (l *PostgresLog) Read(ctx context.Context, q Query) ([]Entry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, event_type, payload, timestamp FROM event_log
		WHERE timestamp >= $1 AND id > $2`)
	args := []any{q.Since, q.AfterID}
	if len(q.Types) > 0 {
		sb.WriteString(fmt.Sprintf(" AND event_type = ANY($%d)", len(args)+1))
		args = append(args, q.Types)
	}
	sb.WriteString(" ORDER BY id ASC")
	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)+1))
		args = append(args, q.Limit)
	}

	rows, err := l.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune implements Log.
func (l *PostgresLog) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-l.retention).UnixMilli()
	tag, err := l.pool.Exec(ctx, `DELETE FROM event_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune event log: %w", err)
	}
	if tag.RowsAffected() > 0 {
		logger.Debug("pruned event log", "removed", tag.RowsAffected())
	}
	return tag.RowsAffected(), nil
}

// Close implements Log.
func (l *PostgresLog) Close() error {
	l.pool.Close()
	return nil
}

var _ Log = (*PostgresLog)(nil)
