package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/repository"
)

func newKnowledgeService(repo repository.KnowledgeRepository) *KnowledgeService {
	cache := NewCacheService(100, 5*time.Minute)
	return NewKnowledgeService(repo, cache, slog.Default())
}

func TestGet_CacheHit(t *testing.T) {
	id := uuid.New().String()
	callCount := 0
	repo := &mockKnowledgeRepo{
		getByIDFn: func(_ context.Context, _, _ string, _ bool) (*model.KnowledgeFile, error) {
			callCount++
			return &model.KnowledgeFile{ID: id, OwnerID: "user-1", Content: "text"}, nil
		},
	}

	svc := newKnowledgeService(repo)
	ctx := context.Background()

	// Первый вызов — промах, второй — из кэша
	if _, err := svc.Get(ctx, id, "user-1", true); err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if _, err := svc.Get(ctx, id, "user-1", true); err != nil {
		t.Fatalf("Get повторно ошибка: %v", err)
	}
	if callCount != 1 {
		t.Errorf("репозиторий вызван %d раз, ожидается 1", callCount)
	}
}

func TestGet_CacheOwnerScope(t *testing.T) {
	id := uuid.New().String()
	repo := &mockKnowledgeRepo{
		getByIDFn: func(_ context.Context, _, ownerID string, _ bool) (*model.KnowledgeFile, error) {
			if ownerID != "user-1" {
				return nil, repository.ErrNotFound
			}
			return &model.KnowledgeFile{ID: id, OwnerID: "user-1"}, nil
		},
	}

	svc := newKnowledgeService(repo)
	ctx := context.Background()

	// Прогреваем кэш от имени владельца
	if _, err := svc.Get(ctx, id, "user-1", true); err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}

	// Кэш-хит не обходит проверку владельца
	if _, err := svc.Get(ctx, id, "user-2", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get чужого владельца = %v, ожидается ErrNotFound", err)
	}
}

func TestGet_InvalidUUID(t *testing.T) {
	svc := newKnowledgeService(&mockKnowledgeRepo{})
	if _, err := svc.Get(context.Background(), "not-a-uuid", "user-1", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, ожидается ErrNotFound", err)
	}
}

func TestGet_LightProjection(t *testing.T) {
	id := uuid.New().String()
	repo := &mockKnowledgeRepo{
		getByIDFn: func(_ context.Context, _, _ string, _ bool) (*model.KnowledgeFile, error) {
			return &model.KnowledgeFile{
				ID: id, OwnerID: "user-1",
				Content: "text", BinaryData: []byte("raw"), FileSize: 3,
			}, nil
		},
	}

	svc := newKnowledgeService(repo)
	record, err := svc.Get(context.Background(), id, "user-1", false)
	if err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}
	if record.Content != "" || record.BinaryData != nil {
		t.Error("облегчённая проекция содержит тяжёлые поля")
	}
	if record.FileSize != 3 {
		t.Errorf("FileSize = %d, лёгкие поля потеряны", record.FileSize)
	}

	// Кэш сохранил полную запись
	full, err := svc.Get(context.Background(), id, "user-1", true)
	if err != nil {
		t.Fatalf("Get полной записи ошибка: %v", err)
	}
	if full.Content != "text" {
		t.Errorf("Content = %q, полная запись потеряна в кэше", full.Content)
	}
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	id := uuid.New().String()
	version := 0
	repo := &mockKnowledgeRepo{
		getByIDFn: func(_ context.Context, _, _ string, _ bool) (*model.KnowledgeFile, error) {
			version++
			return &model.KnowledgeFile{ID: id, OwnerID: "user-1", FileName: "v1.txt"}, nil
		},
		updateFn: func(_ context.Context, _, _ string, _ model.UpdateFields) (*model.KnowledgeFile, error) {
			return &model.KnowledgeFile{ID: id, OwnerID: "user-1", FileName: "v2.txt"}, nil
		},
	}

	svc := newKnowledgeService(repo)
	ctx := context.Background()

	if _, err := svc.Get(ctx, id, "user-1", true); err != nil {
		t.Fatalf("Get ошибка: %v", err)
	}

	name := "v2.txt"
	if _, err := svc.Update(ctx, id, "user-1", model.UpdateFields{FileName: &name}); err != nil {
		t.Fatalf("Update ошибка: %v", err)
	}

	// После инвалидации Get снова идёт в репозиторий
	if _, err := svc.Get(ctx, id, "user-1", true); err != nil {
		t.Fatalf("Get после Update ошибка: %v", err)
	}
	if version != 2 {
		t.Errorf("репозиторий вызван %d раз, ожидается 2 после инвалидации", version)
	}
}

func TestDelete_InvalidUUID(t *testing.T) {
	svc := newKnowledgeService(&mockKnowledgeRepo{})
	deleted, err := svc.Delete(context.Background(), "not-a-uuid", "user-1")
	if err != nil {
		t.Fatalf("Delete ошибка: %v", err)
	}
	if deleted {
		t.Error("Delete = true для некорректного id")
	}
}

func TestBulkDelete_FiltersInvalidIDs(t *testing.T) {
	valid := uuid.New().String()
	var passed []string
	repo := &mockKnowledgeRepo{
		bulkDeleteFn: func(_ context.Context, ids []string, _ string) (int, error) {
			passed = ids
			return len(ids), nil
		},
	}

	svc := newKnowledgeService(repo)
	count, err := svc.BulkDelete(context.Background(), []string{valid, "garbage", ""}, "user-1")
	if err != nil {
		t.Fatalf("BulkDelete ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, ожидается 1", count)
	}
	if len(passed) != 1 || passed[0] != valid {
		t.Errorf("в репозиторий переданы ids = %v", passed)
	}
}

func TestBulkDelete_AllInvalid(t *testing.T) {
	called := false
	repo := &mockKnowledgeRepo{
		bulkDeleteFn: func(_ context.Context, _ []string, _ string) (int, error) {
			called = true
			return 0, nil
		},
	}

	svc := newKnowledgeService(repo)
	count, err := svc.BulkDelete(context.Background(), []string{"x", "y"}, "user-1")
	if err != nil || count != 0 {
		t.Errorf("BulkDelete = (%d, %v), ожидается (0, nil)", count, err)
	}
	if called {
		t.Error("репозиторий вызван при пустом наборе корректных id")
	}
}

func TestBulkUpdate_NormalizesTags(t *testing.T) {
	valid := uuid.New().String()
	var gotFields model.UpdateFields
	repo := &mockKnowledgeRepo{
		bulkUpdateFn: func(_ context.Context, _ []string, _ string, fields model.UpdateFields) (int, error) {
			gotFields = fields
			return 1, nil
		},
	}

	svc := newKnowledgeService(repo)
	tags := []string{"a", "a", " b "}
	if _, err := svc.BulkUpdate(context.Background(), []string{valid}, "user-1", model.UpdateFields{Tags: &tags}); err != nil {
		t.Fatalf("BulkUpdate ошибка: %v", err)
	}
	if gotFields.Tags == nil || len(*gotFields.Tags) != 2 {
		t.Errorf("Tags = %v, ожидается нормализация до 2", gotFields.Tags)
	}
}

func TestDownload(t *testing.T) {
	id := uuid.New().String()
	repo := &mockKnowledgeRepo{
		getByIDFn: func(_ context.Context, _, _ string, _ bool) (*model.KnowledgeFile, error) {
			return &model.KnowledgeFile{
				ID: id, OwnerID: "user-1",
				FileName: "a.bin", BinaryData: []byte{1, 2, 3}, Content: "text",
			}, nil
		},
	}

	svc := newKnowledgeService(repo)
	record, payload, err := svc.Download(context.Background(), id, "user-1")
	if err != nil {
		t.Fatalf("Download ошибка: %v", err)
	}
	// binary_data предпочитается content
	if len(payload) != 3 {
		t.Errorf("payload = %v, ожидается бинарь", payload)
	}
	if record.FileName != "a.bin" {
		t.Errorf("FileName = %q", record.FileName)
	}
}

func TestList_LimitBounds(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &mockKnowledgeRepo{
		listFn: func(_ context.Context, _ string, limit, offset int, _ bool) ([]*model.KnowledgeFile, int, error) {
			gotLimit, gotOffset = limit, offset
			return nil, 0, nil
		},
	}

	svc := newKnowledgeService(repo)
	ctx := context.Background()

	if _, err := svc.List(ctx, "user-1", 0, -5); err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if gotLimit != defaultListLimit || gotOffset != 0 {
		t.Errorf("limit=%d offset=%d, ожидается %d и 0", gotLimit, gotOffset, defaultListLimit)
	}

	if _, err := svc.List(ctx, "user-1", 100000, 10); err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if gotLimit != maxListLimit {
		t.Errorf("limit=%d, ожидается потолок %d", gotLimit, maxListLimit)
	}
}
