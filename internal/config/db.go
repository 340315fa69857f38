package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectDB establishes a connection pool to PostgreSQL, retrying while the database comes up
func ConnectDB(ctx context.Context, dsn string, maxRetries int, retryInterval time.Duration) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.New(ctx, dsn)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				slog.Info("connected to PostgreSQL")
				return pool, nil
			}
			pool.Close()
		}
		slog.Warn("failed to connect to database", "attempt", i+1, "max", maxRetries, "error", err, "retry_in", retryInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", maxRetries, err)
}

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(120) UNIQUE NOT NULL,
		email VARCHAR(120) UNIQUE NOT NULL,
		password_hash VARCHAR(256) NOT NULL,
		full_name VARCHAR(120) NOT NULL,
		role VARCHAR(20) NOT NULL CHECK (role IN ('employee', 'senior')),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id BIGSERIAL PRIMARY KEY,
		purpose VARCHAR(500) NOT NULL,
		amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		recipient_name VARCHAR(120) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'pending', 'approved', 'rejected')),
		creator_id BIGINT NOT NULL REFERENCES users(id),
		recipient_signature VARCHAR(256),
		employee_signature VARCHAR(256),
		senior_signature VARCHAR(256),
		approved_by_id BIGINT REFERENCES users(id),
		approved_at TIMESTAMP WITH TIME ZONE,
		rejection_reason VARCHAR(500),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_creator_id ON expenses(creator_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_status ON expenses(status);
	CREATE INDEX IF NOT EXISTS idx_expenses_created_at ON expenses(created_at);

    CREATE OR REPLACE FUNCTION update_updated_at_column()
    RETURNS TRIGGER AS $$
    BEGIN
       NEW.updated_at = NOW();
       RETURN NEW;
    END;
    $$ language 'plpgsql';

    DO $$
    BEGIN
        IF NOT EXISTS (
            SELECT 1
            FROM pg_trigger
            WHERE tgname = 'set_expenses_updated_at' AND tgrelid = 'expenses'::regclass
        ) THEN
            CREATE TRIGGER set_expenses_updated_at
            BEFORE UPDATE ON expenses
            FOR EACH ROW
            EXECUTE FUNCTION update_updated_at_column();
        END IF;
    END
    $$;
`

// Execer is the subset of pgxpool.Pool used for migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AutoMigrate creates tables if they don't exist
func AutoMigrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}
	slog.Info("AutoMigrate applied successfully")
	return nil
}
