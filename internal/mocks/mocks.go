package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"couplespace/internal/store"
)

type DocumentStoreMock struct {
	mock.Mock
}

func (m *DocumentStoreMock) Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	args := m.Called(ctx, collection, q)
	var docs []store.Document
	if val := args.Get(0); val != nil {
		docs = val.([]store.Document)
	}
	return docs, args.Error(1)
}

func (m *DocumentStoreMock) Get(ctx context.Context, collection, id string) (store.Document, error) {
	args := m.Called(ctx, collection, id)
	var doc store.Document
	if val := args.Get(0); val != nil {
		doc = val.(store.Document)
	}
	return doc, args.Error(1)
}

func (m *DocumentStoreMock) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	args := m.Called(ctx, collection, data)
	return args.String(0), args.Error(1)
}

func (m *DocumentStoreMock) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	args := m.Called(ctx, collection, id, patch)
	return args.Error(0)
}

func (m *DocumentStoreMock) Remove(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

type ObjectStoreMock struct {
	mock.Mock
}

func (m *ObjectStoreMock) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, path, r, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *ObjectStoreMock) ResolveTempURLs(ctx context.Context, fileIDs []string) ([]store.ResolvedFile, error) {
	args := m.Called(ctx, fileIDs)
	var files []store.ResolvedFile
	if val := args.Get(0); val != nil {
		files = val.([]store.ResolvedFile)
	}
	return files, args.Error(1)
}

type SessionProviderMock struct {
	mock.Mock
}

func (m *SessionProviderMock) EnsureSession(ctx context.Context) (store.Identity, error) {
	args := m.Called(ctx)
	var identity store.Identity
	if val := args.Get(0); val != nil {
		identity = val.(store.Identity)
	}
	return identity, args.Error(1)
}

type FunctionCallerMock struct {
	mock.Mock
}

func (m *FunctionCallerMock) Call(ctx context.Context, name string, payload any) error {
	args := m.Called(ctx, name, payload)
	return args.Error(0)
}
