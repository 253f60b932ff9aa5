// Package postgres implements simpleupload.Repository using PostgreSQL.
//
// Every state transition is a single conditional statement keyed on the
// current upload status and session id, so two racing complete/abort calls
// can never both succeed; the loser observes zero affected rows, which maps
// to simpleupload.ErrUploadNotFound.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
)

// DBTX is an interface that allows us to use either a database connection or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleupload.Repository using PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const recordColumns = `id, owner_id, media_type, file_name, title, description,
       object_key, upload_id, upload_status, created_at, updated_at`

// handlePostgresError maps driver errors onto stable messages.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("upload record already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateUploadRecord(ctx context.Context, record *simpleupload.UploadRecord) error {
	query := `
		INSERT INTO upload_record (
			id, owner_id, media_type, file_name, title, description,
			object_key, upload_id, upload_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.OwnerID, record.MediaType, record.FileName,
		record.Title, record.Description, record.ObjectKey,
		record.UploadID, record.UploadStatus, record.CreatedAt, record.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create upload record", err)
	}

	return nil
}

func (r *Repository) GetByUploadID(ctx context.Context, uploadID string) (*simpleupload.UploadRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM upload_record WHERE upload_id = $1`
	return r.scanRecord(r.db.QueryRow(ctx, query, uploadID))
}

func (r *Repository) GetByObjectKey(ctx context.Context, objectKey string) (*simpleupload.UploadRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM upload_record WHERE object_key = $1`
	return r.scanRecord(r.db.QueryRow(ctx, query, objectKey))
}

func (r *Repository) FinalizeUpload(ctx context.Context, id uuid.UUID, uploadID string) error {
	query := `
		UPDATE upload_record SET
			upload_status = $3, upload_id = NULL, updated_at = NOW()
		WHERE id = $1 AND upload_id = $2 AND upload_status = $4`

	tag, err := r.db.Exec(ctx, query, id, uploadID,
		simpleupload.UploadStatusFinished, simpleupload.UploadStatusPending)
	if err != nil {
		return r.handlePostgresError("finalize upload", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleupload.ErrUploadNotFound
	}

	return nil
}

func (r *Repository) DeletePending(ctx context.Context, id uuid.UUID, uploadID string) error {
	query := `
		DELETE FROM upload_record
		WHERE id = $1 AND upload_id = $2 AND upload_status = $3`

	tag, err := r.db.Exec(ctx, query, id, uploadID, simpleupload.UploadStatusPending)
	if err != nil {
		return r.handlePostgresError("delete pending upload", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleupload.ErrUploadNotFound
	}

	return nil
}

func (r *Repository) DeleteByObjectKey(ctx context.Context, ownerID uuid.UUID, objectKey string) (*simpleupload.UploadRecord, error) {
	query := `
		DELETE FROM upload_record
		WHERE owner_id = $1 AND object_key = $2
		RETURNING ` + recordColumns

	return r.scanRecord(r.db.QueryRow(ctx, query, ownerID, objectKey))
}

func (r *Repository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) ([]*simpleupload.UploadRecord, error) {
	query := `
		DELETE FROM upload_record
		WHERE owner_id = $1
		RETURNING ` + recordColumns

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("delete by owner", err)
	}
	defer rows.Close()

	var deleted []*simpleupload.UploadRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, record)
	}

	return deleted, rows.Err()
}

func (r *Repository) scanRecord(row pgx.Row) (*simpleupload.UploadRecord, error) {
	var record simpleupload.UploadRecord
	err := row.Scan(
		&record.ID, &record.OwnerID, &record.MediaType, &record.FileName,
		&record.Title, &record.Description, &record.ObjectKey,
		&record.UploadID, &record.UploadStatus, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleupload.ErrUploadNotFound
		}
		return nil, err
	}

	return &record, nil
}
