package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel is the channel the documents trigger notifies with the
// collection name as payload.
const notifyChannel = "documents"

// PGStore keeps documents in Postgres and watches changes with LISTEN/NOTIFY.
type PGStore struct {
	Pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPGStore connects to dsn.
func NewPGStore(ctx context.Context, dsn string, log *slog.Logger) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PGStore{Pool: pool, log: log}, nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PGStore) Close() {
	s.Pool.Close()
}

// Collection implements Store.
func (s *PGStore) Collection(name string) Collection {
	return &pgCollection{store: s, name: name}
}

type pgCollection struct {
	store *PGStore
	name  string
}

func (c *pgCollection) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := c.store.Pool.Query(ctx, `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY created_at DESC, id`, c.name)
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying %s: %w", c.name, err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) {
		var d Document
		err := row.Scan(&d.ID, &d.Data, &d.CreatedAt, &d.UpdatedAt)
		return d, err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scanning %s: %w", c.name, err)
	}
	return Snapshot{Collection: c.name, Docs: docs}, nil
}

func (c *pgCollection) Put(ctx context.Context, id string, data any) (string, error) {
	raw, err := encode(data)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	_, err = c.store.Pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()`,
		c.name, id, []byte(raw))
	if err != nil {
		return "", fmt.Errorf("writing %s/%s: %w", c.name, id, err)
	}
	return id, nil
}

func (c *pgCollection) Delete(ctx context.Context, id string) error {
	_, err := c.store.Pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, c.name, id)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", c.name, id, err)
	}
	return nil
}

// OnSnapshot holds one pooled connection for LISTEN while subscribed.
func (c *pgCollection) OnSnapshot(ctx context.Context, fn func(Snapshot)) (func(), error) {
	conn, err := c.store.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listening for %s changes: %w", c.name, err)
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		conn.Release()
		return nil, err
	}
	fn(snap)
	recordSnapshot(c.name)

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.watch(watchCtx, conn, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (c *pgCollection) watch(ctx context.Context, conn *pgxpool.Conn, fn func(Snapshot)) {
	log := c.store.log.With("collection", c.name)
	defer func() {
		// A connection that was waiting on LISTEN is not safe to hand back.
		conn.Conn().Close(context.Background())
		conn.Release()
	}()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("waiting for document changes", "error", err)
			}
			return
		}
		if n.Payload != c.name {
			continue
		}

		snapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		snap, err := c.Snapshot(snapCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				log.Error("reloading snapshot", "error", err)
			}
			continue
		}
		fn(snap)
		recordSnapshot(c.name)
	}
}
