package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eagleeye/backend/internal/download"
	"github.com/eagleeye/backend/internal/media"
)

// DownloadRepository is the Postgres-backed download.Store.
type DownloadRepository struct {
	db *DB
}

func NewDownloadRepository(db *DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// nullableID maps an empty user ID to SQL NULL so guest jobs satisfy the
// foreign key.
func nullableID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func (r *DownloadRepository) Create(ctx context.Context, job *download.Job) error {
	query := `
		INSERT INTO downloads (id, user_id, url, title, kind, quality, status, progress,
			file_path, archive_key, error, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, nullableID(job.UserID), job.URL, job.Title, string(job.Kind), job.Quality,
		job.Status, job.Progress, job.FilePath, job.ArchiveKey, job.Error,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	return err
}

func (r *DownloadRepository) Get(ctx context.Context, id string) (*download.Job, error) {
	query := `
		SELECT id, user_id, url, title, kind, quality, status, progress,
			file_path, archive_key, error, created_at, updated_at, completed_at
		FROM downloads
		WHERE id = $1
	`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, download.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *DownloadRepository) Update(ctx context.Context, job *download.Job) error {
	query := `
		UPDATE downloads
		SET title = $2, status = $3, progress = $4, file_path = $5,
			archive_key = $6, error = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`

	job.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		job.ID, job.Title, job.Status, job.Progress, job.FilePath,
		job.ArchiveKey, job.Error, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return download.ErrJobNotFound
	}
	return nil
}

func (r *DownloadRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return download.ErrJobNotFound
	}
	return nil
}

func (r *DownloadRepository) ListByUser(ctx context.Context, userID string) ([]*download.Job, error) {
	query := `
		SELECT id, user_id, url, title, kind, quality, status, progress,
			file_path, archive_key, error, created_at, updated_at, completed_at
		FROM downloads
		WHERE user_id IS NOT DISTINCT FROM $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, nullableID(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*download.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*download.Job, error) {
	var (
		job         download.Job
		userID      sql.NullString
		kind        string
		completedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID, &userID, &job.URL, &job.Title, &kind, &job.Quality,
		&job.Status, &job.Progress, &job.FilePath, &job.ArchiveKey, &job.Error,
		&job.CreatedAt, &job.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.UserID = userID.String
	job.Kind = media.Kind(kind)
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}
