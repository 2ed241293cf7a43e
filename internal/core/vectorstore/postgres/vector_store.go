// Package postgres implements core.VectorStore on PostgreSQL with the
// pgvector extension. Each collection is a table of (id, embedding, payload)
// rows registered in vector_collections.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

var _ core.VectorStore = (*VectorStore)(nil)

// ErrCollectionExists is returned by CreateCollection for a registered name.
var ErrCollectionExists = errors.New("collection already exists")

type collectionInfo struct {
	table     string
	dimension int
	distance  core.Distance
}

type VectorStore struct {
	db  *sql.DB
	log *logger.Logger

	mu          sync.RWMutex
	collections map[string]collectionInfo
}

func NewVectorStore(ctx context.Context, log *logger.Logger, databaseURL string) (*VectorStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log = log.With("service", "PgVectorStore")
	log.Info("pgvector store selected")
	return &VectorStore{db: db, log: log, collections: map[string]collectionInfo{}}, nil
}

func (s *VectorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *VectorStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vector_collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *VectorStore) CreateCollection(ctx context.Context, name string, vectorSize int, distance core.Distance) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}
	table := tableName(name)
	_, opclass := distanceSQL(distance)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vector_collections (name, table_name, dimension, distance) VALUES ($1, $2, $3, $4)`,
		name, table, vectorSize, string(distance)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrCollectionExists, name)
		}
		return fmt.Errorf("register collection: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id        UUID PRIMARY KEY,
			embedding vector(%[2]d) NOT NULL,
			payload   JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING gin (payload jsonb_path_ops);
		CREATE INDEX IF NOT EXISTS %[4]s ON %[1]s USING hnsw (embedding %[5]s);`,
		table, vectorSize, indexName(name, "payload"), indexName(name, "embedding"), opclass)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.log.Info("created collection", "collection", name, "dimension", vectorSize, "distance", distance)
	return nil
}

// Upsert writes all points in one transaction. Commit implies durability,
// so wait has no further effect.
func (s *VectorStore) Upsert(ctx context.Context, collection string, points []models.Point, _ bool) error {
	if len(points) == 0 {
		return nil
	}
	info, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
		info.table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if len(p.Vector) != info.dimension {
			return fmt.Errorf("point %s: vector length %d, collection expects %d", p.ID, len(p.Vector), info.dimension)
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, pgvector.NewVector(p.Vector), payload); err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *VectorStore) Count(ctx context.Context, collection string, filter core.Filter) (int, error) {
	info, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return 0, err
	}
	var n int
	q := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, info.table, where)
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return n, nil
}

func (s *VectorStore) Delete(ctx context.Context, collection string, filter core.Filter, _ bool) error {
	if filter.IsEmpty() {
		return fmt.Errorf("delete requires a filter")
	}
	info, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, info.table, where), args...); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (s *VectorStore) Search(ctx context.Context, collection string, vector []float32, filter core.Filter, limit int) ([]models.ScoredPoint, error) {
	info, err := s.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.dimension {
		return nil, fmt.Errorf("query vector length %d, collection expects %d", len(vector), info.dimension)
	}
	if limit <= 0 {
		limit = 10
	}
	where, args, err := whereClause(filter, 3)
	if err != nil {
		return nil, err
	}
	op, _ := distanceSQL(info.distance)
	q := fmt.Sprintf(`
		SELECT id::text, payload, embedding %[2]s $1 AS distance
		FROM %[1]s
		WHERE %[3]s
		ORDER BY embedding %[2]s $1
		LIMIT $2`, info.table, op, where)

	rows, err := s.db.QueryContext(ctx, q, append([]any{pgvector.NewVector(vector), limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	defer rows.Close()

	var out []models.ScoredPoint
	for rows.Next() {
		var (
			id       string
			raw      []byte
			distance float64
		)
		if err := rows.Scan(&id, &raw, &distance); err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", id, err)
		}
		out = append(out, models.ScoredPoint{
			ID:      id,
			Score:   scoreFromDistance(info.distance, distance),
			Payload: payload,
		})
	}
	return out, rows.Err()
}

// collection resolves a registered collection, caching the lookup.
func (s *VectorStore) collection(ctx context.Context, name string) (collectionInfo, error) {
	s.mu.RLock()
	info, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}

	var distance string
	err := s.db.QueryRowContext(ctx,
		`SELECT table_name, dimension, distance FROM vector_collections WHERE name = $1`, name).
		Scan(&info.table, &info.dimension, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return collectionInfo{}, fmt.Errorf("collection %q not found", name)
	}
	if err != nil {
		return collectionInfo{}, fmt.Errorf("lookup collection %q: %w", name, err)
	}
	info.distance = core.Distance(distance)

	s.mu.Lock()
	s.collections[name] = info
	s.mu.Unlock()
	return info, nil
}
