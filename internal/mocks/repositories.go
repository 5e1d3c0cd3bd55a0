package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"couplespace/internal/repositories"
)

type DocumentRepositoryMock struct {
	mock.Mock
}

func (m *DocumentRepositoryMock) Query(ctx context.Context, collection string, q repositories.DocumentQuery) ([]repositories.StoredDocument, error) {
	args := m.Called(ctx, collection, q)
	var docs []repositories.StoredDocument
	if val := args.Get(0); val != nil {
		docs = val.([]repositories.StoredDocument)
	}
	return docs, args.Error(1)
}

func (m *DocumentRepositoryMock) Get(ctx context.Context, collection, id string) (repositories.StoredDocument, error) {
	args := m.Called(ctx, collection, id)
	var doc repositories.StoredDocument
	if val := args.Get(0); val != nil {
		doc = val.(repositories.StoredDocument)
	}
	return doc, args.Error(1)
}

func (m *DocumentRepositoryMock) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	args := m.Called(ctx, collection, data)
	return args.String(0), args.Error(1)
}

func (m *DocumentRepositoryMock) Patch(ctx context.Context, collection, id string, patch map[string]any) error {
	args := m.Called(ctx, collection, id, patch)
	return args.Error(0)
}

func (m *DocumentRepositoryMock) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

type FileRepositoryMock struct {
	mock.Mock
}

func (m *FileRepositoryMock) Insert(ctx context.Context, path string, content []byte, contentType string) (string, error) {
	args := m.Called(ctx, path, content, contentType)
	return args.String(0), args.Error(1)
}

func (m *FileRepositoryMock) Get(ctx context.Context, id string) (repositories.StoredFile, error) {
	args := m.Called(ctx, id)
	var file repositories.StoredFile
	if val := args.Get(0); val != nil {
		file = val.(repositories.StoredFile)
	}
	return file, args.Error(1)
}

func (m *FileRepositoryMock) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
