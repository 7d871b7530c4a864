package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ProjectStats is the aggregate index summary served by `codesearch
// index-info`. It is bookkeeping only — never consulted by Reindex,
// which always diffs against VectorStore.GetIndexedMetadata.
type ProjectStats struct {
	RootPath      string
	FileCount     int
	ChunkCount    int
	EmbedderModel string
	LastIndexedAt time.Time
}

// MetadataStore is a SQLite-backed sidecar for ambient CLI statistics.
// It is independent of the vector table's own per-row mtime bookkeeping.
type MetadataStore struct {
	db *sql.DB
}

// NewMetadataStore opens (creating if absent) the SQLite database at path.
func NewMetadataStore(ctx context.Context, path string) (*MetadataStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &MetadataStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *MetadataStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS project_stats (
		root_path       TEXT PRIMARY KEY,
		file_count      INTEGER NOT NULL DEFAULT 0,
		chunk_count     INTEGER NOT NULL DEFAULT 0,
		embedder_model  TEXT NOT NULL DEFAULT '',
		last_indexed_at INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordReindex upserts the stats row for root after a completed Reindex.
func (s *MetadataStore) RecordReindex(ctx context.Context, root string, fileCount, chunkCount int, embedderModel string) error {
	const q = `
	INSERT INTO project_stats (root_path, file_count, chunk_count, embedder_model, last_indexed_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(root_path) DO UPDATE SET
		file_count = excluded.file_count,
		chunk_count = excluded.chunk_count,
		embedder_model = excluded.embedder_model,
		last_indexed_at = excluded.last_indexed_at;
	`
	_, err := s.db.ExecContext(ctx, q, root, fileCount, chunkCount, embedderModel, time.Now().Unix())
	return err
}

// GetStats returns the stats row for root, or nil if root has never been
// indexed.
func (s *MetadataStore) GetStats(ctx context.Context, root string) (*ProjectStats, error) {
	const q = `
	SELECT root_path, file_count, chunk_count, embedder_model, last_indexed_at
	FROM project_stats WHERE root_path = ?;
	`
	row := s.db.QueryRowContext(ctx, q, root)

	var stats ProjectStats
	var lastIndexed int64
	if err := row.Scan(&stats.RootPath, &stats.FileCount, &stats.ChunkCount, &stats.EmbedderModel, &lastIndexed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query stats: %w", err)
	}
	stats.LastIndexedAt = time.Unix(lastIndexed, 0)
	return &stats, nil
}

// Close closes the underlying database connection.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}
