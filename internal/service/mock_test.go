package service

import (
	"context"

	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/repository"
)

// mockKnowledgeRepo — мок KnowledgeRepository для unit-тестов.
type mockKnowledgeRepo struct {
	createFn           func(ctx context.Context, f *model.KnowledgeFile) error
	getByIDFn          func(ctx context.Context, id, ownerID string, includeContent bool) (*model.KnowledgeFile, error)
	listFn             func(ctx context.Context, ownerID string, limit, offset int, includeContent bool) ([]*model.KnowledgeFile, int, error)
	updateFn           func(ctx context.Context, id, ownerID string, fields model.UpdateFields) (*model.KnowledgeFile, error)
	deleteFn           func(ctx context.Context, id, ownerID string) (bool, error)
	bulkDeleteFn       func(ctx context.Context, ids []string, ownerID string) (int, error)
	bulkUpdateFn       func(ctx context.Context, ids []string, ownerID string, fields model.UpdateFields) (int, error)
	listCategoriesFn   func(ctx context.Context, ownerID string) ([]string, error)
	listTagsFn         func(ctx context.Context, ownerID string) ([]string, error)
	searchCandidatesFn func(ctx context.Context, ownerID string, filters repository.SearchFilters) ([]*model.KnowledgeFile, error)
}

func (m *mockKnowledgeRepo) Create(ctx context.Context, f *model.KnowledgeFile) error {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockKnowledgeRepo) GetByID(ctx context.Context, id, ownerID string, includeContent bool) (*model.KnowledgeFile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id, ownerID, includeContent)
	}
	return nil, repository.ErrNotFound
}

func (m *mockKnowledgeRepo) List(ctx context.Context, ownerID string, limit, offset int, includeContent bool) ([]*model.KnowledgeFile, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, limit, offset, includeContent)
	}
	return nil, 0, nil
}

func (m *mockKnowledgeRepo) Update(ctx context.Context, id, ownerID string, fields model.UpdateFields) (*model.KnowledgeFile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, ownerID, fields)
	}
	return nil, repository.ErrNotFound
}

func (m *mockKnowledgeRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, ownerID)
	}
	return false, nil
}

func (m *mockKnowledgeRepo) BulkDelete(ctx context.Context, ids []string, ownerID string) (int, error) {
	if m.bulkDeleteFn != nil {
		return m.bulkDeleteFn(ctx, ids, ownerID)
	}
	return 0, nil
}

func (m *mockKnowledgeRepo) BulkUpdate(ctx context.Context, ids []string, ownerID string, fields model.UpdateFields) (int, error) {
	if m.bulkUpdateFn != nil {
		return m.bulkUpdateFn(ctx, ids, ownerID, fields)
	}
	return 0, nil
}

func (m *mockKnowledgeRepo) ListCategories(ctx context.Context, ownerID string) ([]string, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockKnowledgeRepo) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	if m.listTagsFn != nil {
		return m.listTagsFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockKnowledgeRepo) SearchCandidates(ctx context.Context, ownerID string, filters repository.SearchFilters) ([]*model.KnowledgeFile, error) {
	if m.searchCandidatesFn != nil {
		return m.searchCandidatesFn(ctx, ownerID, filters)
	}
	return nil, nil
}
