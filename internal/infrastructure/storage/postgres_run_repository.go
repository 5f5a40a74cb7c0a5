package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
)

const runsSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		label         TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		status        TEXT NOT NULL,
		tile_count    INTEGER NOT NULL,
		feature_count INTEGER NOT NULL,
		path_count    INTEGER NOT NULL,
		issue_count   INTEGER NOT NULL,
		class_counts  JSONB NOT NULL DEFAULT '{}'::jsonb,
		geojson_path  TEXT NOT NULL,
		archive_path  TEXT NOT NULL,
		archive_size  BIGINT NOT NULL
	)`

const runColumns = `id, label, created_at, status, tile_count, feature_count,
	path_count, issue_count, class_counts, geojson_path, archive_path, archive_size`

// runRow is the table shape of a RunRecord.
type runRow struct {
	entity.RunRecord
	ClassCountsJSON []byte `db:"class_counts"`
}

// PostgresRunRepository stores run history in a Postgres "runs" table.
type PostgresRunRepository struct {
	db *sqlx.DB
}

// NewPostgresRunRepository connects and makes sure the table exists.
func NewPostgresRunRepository(ctx context.Context, dsn string) (*PostgresRunRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	repo := &PostgresRunRepository{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// ensureSchema creates the runs table when it is missing.
func (r *PostgresRunRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, runsSchema); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

func (r *PostgresRunRepository) Save(ctx context.Context, record *entity.RunRecord) error {
	const query = `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			status = EXCLUDED.status,
			tile_count = EXCLUDED.tile_count,
			feature_count = EXCLUDED.feature_count,
			path_count = EXCLUDED.path_count,
			issue_count = EXCLUDED.issue_count,
			class_counts = EXCLUDED.class_counts,
			geojson_path = EXCLUDED.geojson_path,
			archive_path = EXCLUDED.archive_path,
			archive_size = EXCLUDED.archive_size`

	row, err := toRunRow(record)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query,
		row.ID, row.Label, row.CreatedAt, string(row.Status),
		row.TileCount, row.FeatureCount, row.PathCount, row.IssueCount,
		row.ClassCountsJSON, row.GeoJSONPath, row.ArchivePath, row.ArchiveSize,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", record.ID, err)
	}
	return nil
}

func (r *PostgresRunRepository) Get(ctx context.Context, id string) (*entity.RunRecord, error) {
	const query = `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return row.record()
}

func (r *PostgresRunRepository) List(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]*entity.RunRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close releases the connection pool.
func (r *PostgresRunRepository) Close() error {
	return r.db.Close()
}

func toRunRow(record *entity.RunRecord) (runRow, error) {
	counts := record.ClassCounts
	if counts == nil {
		counts = map[string]int{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to marshal class counts: %w", err)
	}
	return runRow{RunRecord: *record, ClassCountsJSON: data}, nil
}

func (row runRow) record() (*entity.RunRecord, error) {
	rec := row.RunRecord
	rec.ClassCounts = map[string]int{}
	if len(row.ClassCountsJSON) > 0 {
		if err := json.Unmarshal(row.ClassCountsJSON, &rec.ClassCounts); err != nil {
			return nil, fmt.Errorf("failed to decode class counts of run %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

var _ port.RunRepository = (*PostgresRunRepository)(nil)
