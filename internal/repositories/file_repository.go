package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrFileNotFound = errors.New("file not found")

// StoredFile is one row of the files table.
type StoredFile struct {
	ID          string    `db:"id"`
	Path        string    `db:"path"`
	Content     []byte    `db:"content"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	CreatedAt   time.Time `db:"created_at"`
}

// FileRepository defines interactions with stored binary objects.
type FileRepository interface {
	Insert(ctx context.Context, path string, content []byte, contentType string) (string, error)
	Get(ctx context.Context, id string) (StoredFile, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// FileRepo is a sqlx-backed repository.
type FileRepo struct {
	db *sqlx.DB
}

// NewFileRepo constructs FileRepo.
func NewFileRepo(db *sqlx.DB) *FileRepo {
	return &FileRepo{db: db}
}

// Insert stores a binary object and returns its file id.
func (r *FileRepo) Insert(ctx context.Context, path string, content []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (id, path, content, content_type, size) VALUES ($1, $2, $3, $4, $5)`,
		id, path, content, contentType, int64(len(content)))
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get retrieves a stored object with its content.
func (r *FileRepo) Get(ctx context.Context, id string) (StoredFile, error) {
	var file StoredFile
	err := r.db.GetContext(ctx, &file, `SELECT id, path, content, content_type, size, created_at FROM files WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredFile{}, ErrFileNotFound
	}
	return file, err
}

// Exists reports whether a file id is known without loading content.
func (r *FileRepo) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM files WHERE id=$1`, id); err != nil {
		return false, err
	}
	return count > 0, nil
}
