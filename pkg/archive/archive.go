// Package archive persists completed encounters (the final record plus the
// conversation transcript) to Postgres.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/voxform/voxform/pkg/core"
	"github.com/voxform/voxform/pkg/core/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Encounter is one archived conversation.
type Encounter struct {
	ID         uuid.UUID
	Mode       string
	Record     map[string]string
	Transcript []types.Turn
	CreatedAt  time.Time
}

// Store is a Postgres-backed encounter archive.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database, runs pending migrations, and returns a
// ready store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := migrate(dsn); err != nil {
		return nil, core.NewConnectionFailedError("run archive migrations", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, core.NewConnectionFailedError("open archive pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.NewConnectionFailedError("ping archive database", err)
	}
	return &Store{pool: pool}, nil
}

// migrate runs goose over database/sql; pgxpool has no *sql.DB to hand it.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Save archives the current record and transcript under a fresh id.
func (s *Store) Save(ctx context.Context, mode string, record *types.Record, transcript *types.Transcript) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO encounters (id, mode, record, transcript) VALUES ($1, $2, $3, $4)`,
		id, mode, record.Values(), transcript.Turns(),
	)
	if err != nil {
		return uuid.Nil, core.NewConnectionFailedError("save encounter", err)
	}
	return id, nil
}

// Get loads one archived encounter by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, mode, record, transcript, created_at FROM encounters WHERE id = $1`, id)

	var e Encounter
	if err := row.Scan(&e.ID, &e.Mode, &e.Record, &e.Transcript, &e.CreatedAt); err != nil {
		return nil, core.NewConnectionFailedError("load encounter", err)
	}
	return &e, nil
}

// List returns the most recent encounters, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Encounter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, record, transcript, created_at FROM encounters ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, core.NewConnectionFailedError("list encounters", err)
	}
	defer rows.Close()

	var out []Encounter
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.ID, &e.Mode, &e.Record, &e.Transcript, &e.CreatedAt); err != nil {
			return nil, core.NewConnectionFailedError("scan encounter", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewConnectionFailedError("iterate encounters", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
