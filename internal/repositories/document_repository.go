package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrDocumentNotFound = errors.New("document not found")

// StoredDocument is one row of the documents table.
type StoredDocument struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// DocumentQuery selects documents by top-level equality filters.
type DocumentQuery struct {
	Filter  map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// DocumentRepository defines interactions with the document collections.
type DocumentRepository interface {
	Query(ctx context.Context, collection string, q DocumentQuery) ([]StoredDocument, error)
	Get(ctx context.Context, collection, id string) (StoredDocument, error)
	Insert(ctx context.Context, collection string, data map[string]any) (string, error)
	Patch(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// DocumentRepo is a sqlx-backed repository storing documents as JSONB.
type DocumentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo constructs DocumentRepo.
func NewDocumentRepo(db *sqlx.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Query returns documents matching all equality filters, ordered by a
// top-level data key.
func (r *DocumentRepo) Query(ctx context.Context, collection string, q DocumentQuery) ([]StoredDocument, error) {
	query := `SELECT id, data FROM documents WHERE collection=$1`
	args := []any{collection}

	if len(q.Filter) > 0 {
		filterJSON, err := json.Marshal(q.Filter)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(` AND data @> $%d`, len(args)+1)
		args = append(args, string(filterJSON))
	}

	// String comparison; timestamp keys rely on clients writing the
	// fixed-width store.TimestampLayout so lexical order is chronological.
	if q.OrderBy != "" && isSafeKey(q.OrderBy) {
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		query += fmt.Sprintf(` ORDER BY data->>'%s' %s`, q.OrderBy, direction)
	}

	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []StoredDocument
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data := map[string]any{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		docs = append(docs, StoredDocument{ID: id, Data: data})
	}
	return docs, rows.Err()
}

// Get retrieves a single document.
func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (StoredDocument, error) {
	var raw []byte
	err := r.db.QueryRowxContext(ctx, `SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredDocument{}, ErrDocumentNotFound
	}
	if err != nil {
		return StoredDocument{}, err
	}

	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return StoredDocument{}, err
	}
	return StoredDocument{ID: id, Data: data}, nil
}

// Insert stores a new document and returns its server-assigned id.
func (r *DocumentRepo) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `INSERT INTO documents (id, collection, data) VALUES ($1, $2, $3)`, id, collection, string(raw))
	if err != nil {
		return "", err
	}
	return id, nil
}

// Patch merges a partial record into an existing document.
func (r *DocumentRepo) Patch(ctx context.Context, collection, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE documents SET data = data || $1::jsonb WHERE collection=$2 AND id=$3`, string(raw), collection, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document by id.
func (r *DocumentRepo) Delete(ctx context.Context, collection, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// isSafeKey restricts order-by keys to plain identifiers so user input
// never reaches SQL unquoted.
func isSafeKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return !strings.ContainsAny(key, "'\"")
}
