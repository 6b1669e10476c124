package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engram-ai/engram/src/memory/model"
)

// PostgresStore persists memory records and versions in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given DSN and pings the server.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	if connString == "" {
		return nil, errors.New("postgres connection string is required")
	}
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateSchema creates the record and version tables plus their indexes.
// Idempotent.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding REAL[],
			embedding_model_id TEXT NOT NULL DEFAULT '',
			importance DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			access_count BIGINT NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMPTZ,
			source_type TEXT NOT NULL DEFAULT 'manual',
			source_ref TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			needs_resync BOOLEAN NOT NULL DEFAULT FALSE,
			extra JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS memory_records_owner_type
			ON memory_records (owner_id, memory_type) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS memory_records_owner_pinned
			ON memory_records (owner_id) WHERE is_active AND is_pinned`,
		`CREATE TABLE IF NOT EXISTS memory_versions (
			memory_id UUID NOT NULL REFERENCES memory_records(id) ON DELETE CASCADE,
			version_number INT NOT NULL,
			content TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			changed_by TEXT NOT NULL DEFAULT 'system',
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (memory_id, version_number)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

const recordColumns = `id, owner_id, content, memory_type, category, tags,
	embedding, embedding_model_id, importance, confidence, access_count,
	last_accessed_at, source_type, source_ref, created_at, updated_at,
	is_active, is_pinned, is_verified, needs_resync, extra`

func (s *PostgresStore) Create(ctx context.Context, rec *model.MemoryRecord) error {
	if err := prepareCreate(rec, time.Now().UTC()); err != nil {
		return err
	}
	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO memory_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		rec.ID, rec.OwnerID, rec.Content, string(rec.Type), rec.Category, rec.Tags,
		rec.Embedding, rec.EmbeddingModelID, rec.Importance, rec.Confidence, rec.AccessCount,
		rec.LastAccessedAt, string(rec.Source), rec.SourceRef, rec.CreatedAt, rec.UpdatedAt,
		rec.Active, rec.Pinned, rec.Verified, rec.NeedsResync, extra)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, ownerID, id string) (model.MemoryRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM memory_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.MemoryRecord{}, ErrNotFound
		}
		return model.MemoryRecord{}, err
	}
	if rec.OwnerID != ownerID {
		return model.MemoryRecord{}, ErrUnauthorized
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, ownerID, id string, req UpdateRequest) (model.MemoryRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM memory_records WHERE id = $1 FOR UPDATE`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.MemoryRecord{}, ErrNotFound
		}
		return model.MemoryRecord{}, err
	}
	if rec.OwnerID != ownerID {
		return model.MemoryRecord{}, ErrUnauthorized
	}
	if !rec.Active {
		return model.MemoryRecord{}, ErrNotFound
	}

	now := time.Now().UTC()
	prior := rec.Content
	if applyUpdate(&rec, req, now) {
		_, err = tx.Exec(ctx, `INSERT INTO memory_versions
			(memory_id, version_number, content, reason, changed_by, created_at)
			VALUES ($1,
				(SELECT COALESCE(MAX(version_number), 0) + 1 FROM memory_versions WHERE memory_id = $1),
				$2, $3, $4, $5)`,
			id, prior, req.Reason, string(req.ChangedBy), now)
		if err != nil {
			return model.MemoryRecord{}, err
		}
	}

	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	_, err = tx.Exec(ctx, `UPDATE memory_records SET
			content = $2, category = $3, tags = $4, embedding = $5,
			embedding_model_id = $6, importance = $7, confidence = $8,
			is_pinned = $9, is_verified = $10, needs_resync = $11,
			extra = $12, updated_at = $13
		WHERE id = $1`,
		id, rec.Content, rec.Category, rec.Tags, rec.Embedding,
		rec.EmbeddingModelID, rec.Importance, rec.Confidence,
		rec.Pinned, rec.Verified, rec.NeedsResync, extra, rec.UpdatedAt)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.MemoryRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, ownerID, id string) error {
	if err := s.checkOwner(ctx, ownerID, id); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE memory_records SET is_active = FALSE, updated_at = $2
		WHERE id = $1 AND is_active`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HardDelete(ctx context.Context, ownerID, id string) error {
	if err := s.checkOwner(ctx, ownerID, id); err != nil {
		return err
	}
	// Versions cascade via the foreign key.
	_, err := s.pool.Exec(ctx, `DELETE FROM memory_records WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, filter ListFilter, order Order) ([]model.MemoryRecord, error) {
	var (
		clauses = []string{"owner_id = $1", "is_active"}
		args    = []any{ownerID}
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Type != "" {
		add("memory_type = $%d", string(filter.Type))
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Source != "" {
		add("source_type = $%d", string(filter.Source))
	}
	if filter.Tag != "" {
		add("$%d = ANY(tags)", filter.Tag)
	}
	if filter.Pinned != nil {
		add("is_pinned = $%d", *filter.Pinned)
	}
	if filter.Verified != nil {
		add("is_verified = $%d", *filter.Verified)
	}
	if filter.NeedsResync != nil {
		add("needs_resync = $%d", *filter.NeedsResync)
	}

	orderBy := "created_at DESC, id ASC"
	switch order {
	case OrderUpdatedDesc:
		orderBy = "updated_at DESC, id ASC"
	case OrderImportanceDesc:
		orderBy = "importance DESC, id ASC"
	}

	query := `SELECT ` + recordColumns + ` FROM memory_records WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY ` + orderBy
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.MemoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Pinned(ctx context.Context, ownerID string) ([]model.MemoryRecord, error) {
	pinned := true
	return s.List(ctx, ownerID, ListFilter{Pinned: &pinned}, OrderImportanceDesc)
}

func (s *PostgresStore) Versions(ctx context.Context, ownerID, id string) ([]model.MemoryVersion, error) {
	if err := s.checkOwner(ctx, ownerID, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT memory_id, version_number, content, reason, changed_by, created_at
		FROM memory_versions WHERE memory_id = $1 ORDER BY version_number ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []model.MemoryVersion
	for rows.Next() {
		var v model.MemoryVersion
		var changedBy string
		if err := rows.Scan(&v.MemoryID, &v.Version, &v.Content, &v.Reason, &changedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.ChangedBy = model.ChangedBy(changedBy)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *PostgresStore) Touch(ctx context.Context, ownerID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE memory_records
		SET access_count = access_count + 1, last_accessed_at = $3
		WHERE owner_id = $1 AND is_active AND id = ANY($2)`, ownerID, ids, at)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) checkOwner(ctx context.Context, ownerID, id string) error {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM memory_records WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if owner != ownerID {
		return ErrUnauthorized
	}
	return nil
}

func scanRecord(row pgx.Row) (model.MemoryRecord, error) {
	var (
		rec        model.MemoryRecord
		memoryType string
		source     string
		extra      []byte
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Content, &memoryType, &rec.Category, &rec.Tags,
		&rec.Embedding, &rec.EmbeddingModelID, &rec.Importance, &rec.Confidence, &rec.AccessCount,
		&rec.LastAccessedAt, &source, &rec.SourceRef, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.Active, &rec.Pinned, &rec.Verified, &rec.NeedsResync, &extra)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	rec.Type = model.MemoryType(memoryType)
	rec.Source = model.SourceType(source)
	if len(extra) > 0 && string(extra) != "{}" {
		if err := json.Unmarshal(extra, &rec.Extra); err != nil {
			return model.MemoryRecord{}, fmt.Errorf("decode extra: %w", err)
		}
	}
	return rec, nil
}

func encodeExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(extra)
}

var _ Store = (*PostgresStore)(nil)
