package store

import (
	"context"
	"io"
)

// Document is a raw record from the remote document store.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Query selects documents by equality filters with ordering and a limit.
type Query struct {
	Filter  map[string]any `json:"filter,omitempty"`
	OrderBy string         `json:"order_by,omitempty"`
	Desc    bool           `json:"desc,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// DocumentStore is the remote document collection owned by the backend.
type DocumentStore interface {
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Remove(ctx context.Context, collection, id string) error
}

// ResolveStatusOK marks a successful temp-URL resolution entry.
const ResolveStatusOK = "SUCCESS"

// TimestampLayout is the wire format for timestamps written into
// documents. The fractional part is fixed-width so the backend's
// lexicographic ORDER BY on the string matches chronological order;
// RFC3339Nano drops trailing zeros and breaks that within a second.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ResolvedFile is one entry of a batched temp-URL resolution.
type ResolvedFile struct {
	FileID string `json:"file_id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// ObjectStore is the remote binary storage owned by the backend. Upload
// returns an opaque file id; ResolveTempURLs exchanges ids for short-lived
// fetchable URLs in one round trip.
type ObjectStore interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error)
	ResolveTempURLs(ctx context.Context, fileIDs []string) ([]ResolvedFile, error)
}

// Identity is an authenticated backend session.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Token  string `json:"token"`
}

// SessionProvider guarantees a live session before any remote call.
type SessionProvider interface {
	EnsureSession(ctx context.Context) (Identity, error)
}

// FunctionCaller invokes a named serverless function on the backend.
type FunctionCaller interface {
	Call(ctx context.Context, name string, payload any) error
}
