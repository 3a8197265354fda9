// Package postgres is the persistent blobstore.Store backend: a lib/pq
// connection pool serving a content-addressed blobs table plus a labels
// table.
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"chatcore/internal/config"
	"chatcore/internal/dag"
	"chatcore/internal/errors"

	_ "github.com/lib/pq"
)

// Store is a lib/pq-backed blobstore.Store. Schema (created by init
// scripts, no migration tooling):
//
//	CREATE TABLE blobs (hash text PRIMARY KEY, body bytea NOT NULL);
//	CREATE TABLE labels (name text PRIMARY KEY, hash text NOT NULL);
type Store struct {
	db *sql.DB
}

// New opens a connection pool and verifies connectivity, retrying a
// few times before giving up — containers can start before postgres is
// ready to accept connections.
func New(cfg config.StoreConfig) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrMissingEnvVar, "STORE_URL is required for the postgres backend")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, errors.New(errors.ErrDatabaseError, fmt.Sprintf("failed to open store connection: %v", err))
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := db.PingContext(ctx); err != nil {
			lastErr = err
			slog.Warn("store connection attempt failed", "attempt", i+1, "error", err)
			if i < 2 {
				time.Sleep(2 * time.Second)
				continue
			}
		} else {
			lastErr = nil
			break
		}
	}
	if lastErr != nil {
		db.Close()
		return nil, errors.New(errors.ErrDatabaseError, fmt.Sprintf("failed to connect to store after 3 attempts: %v", lastErr))
	}

	slog.Info("connected to postgres blob store")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, body []byte) (dag.Hash, error) {
	id := dag.Hash(sha256.Sum256(body))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (hash, body) VALUES ($1, $2) ON CONFLICT (hash) DO NOTHING`,
		id.String(), body,
	)
	if err != nil {
		return dag.Hash{}, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id dag.Hash) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM blobs WHERE hash = $1`, id.String()).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("blob not found: %s", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseError)
	}
	return body, nil
}

func (s *Store) GetByLabel(ctx context.Context, name string) (dag.Hash, bool, error) {
	var hashStr string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM labels WHERE name = $1`, name).Scan(&hashStr)
	if err == sql.ErrNoRows {
		return dag.Hash{}, false, nil
	}
	if err != nil {
		return dag.Hash{}, false, errors.Wrap(err, errors.ErrDatabaseError)
	}
	id, err := dag.ParseHash(hashStr)
	if err != nil {
		return dag.Hash{}, false, err
	}
	return id, true, nil
}

func (s *Store) Label(ctx context.Context, name string, id dag.Hash) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO labels (name, hash) VALUES ($1, $2)`, name, id.String())
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}

func (s *Store) ReplaceAtLabel(ctx context.Context, name string, id dag.Hash) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO labels (name, hash) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET hash = EXCLUDED.hash`,
		name, id.String(),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseError)
	}
	return nil
}
