// internal/archive/postgres.go
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colehaney/parlor/internal/session"
)

// DB is the global archive pool. The archive is optional: when Connect was
// never called (or failed) every write is a no-op.
var DB *pgxpool.Pool

// Connect opens the archive pool from environment variables:
//
//	POSTGRES_USER, POSTGRES_PASSWORD, PG_HOST, PG_PORT, PG_DATABASE
func Connect() error {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("archive ping error: %w", err)
	}

	DB = pool
	return nil
}

// Enabled reports whether the archive pool is connected.
func Enabled() bool {
	return DB != nil
}

// SaveSessionResult persists the final snapshot of a finished session: one
// sessions row plus one session_results row per participant. Called after
// teardown, never on the hot path.
func SaveSessionResult(ctx context.Context, snap session.Snapshot) error {
	if DB == nil {
		return nil
	}

	feed, err := json.Marshal(snap.EventFeed)
	if err != nil {
		return fmt.Errorf("marshal event feed: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertSession := `
			INSERT INTO sessions (id, name, owner_id, rounds_played, event_feed, created_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (id) DO UPDATE
			SET rounds_played=$4, event_feed=$5, ended_at=now()
		`
		if _, e := tx.Exec(ctx, upsertSession, snap.SessionID, snap.Name, snap.OwnerID, snap.Round, feed, snap.CreatedAt); e != nil {
			return e
		}

		for _, p := range snap.Participants {
			q := `
				INSERT INTO session_results (session_id, participant_id, name, kind, points)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (session_id, participant_id)
				DO UPDATE SET points=$5
			`
			if _, e := tx.Exec(ctx, q, snap.SessionID, p.ID, p.Name, string(p.Kind), p.Points); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert session results: %w", err)
	}
	return nil
}
