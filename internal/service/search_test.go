package service

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/bigkaa/goknowbase/internal/domain/model"
	"github.com/bigkaa/goknowbase/internal/repository"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"пустая строка", "", nil},
		{"одно слово", "invoice", []string{"invoice"}},
		{"регистр приводится", "Invoice REPORT", []string{"invoice", "report"}},
		{"пунктуация как разделитель", "q1-report, revenue!", []string{"q1", "report", "revenue"}},
		{"дубликаты схлопываются", "report report Report", []string{"report"}},
		{"только разделители", "-- ,, !!", nil},
		{"кириллица", "Отчёт за квартал", []string{"отчёт", "за", "квартал"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.query)
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Tokenize(%q) = %v, ожидается %v", tt.query, got, tt.expected)
			}
		})
	}
}

func TestScoreRecord(t *testing.T) {
	record := &model.KnowledgeFile{
		FileName: "Q1-Report.pdf",
		Content:  "quarterly revenue grew by ten percent",
		Tags:     []string{"Finance", "internal"},
	}

	tests := []struct {
		name   string
		tokens []string
		score  int
	}{
		{"нет токенов", nil, 0},
		{"токен в content", []string{"revenue"}, 1},
		{"токен в имени файла", []string{"report"}, 1},
		{"токен в теге", []string{"finance"}, 1},
		{"несколько токенов", []string{"revenue", "report", "finance"}, 3},
		{"повтор токена в разных полях считается один раз", []string{"q1"}, 1},
		{"нет совпадений", []string{"contract"}, 0},
		{"частичное совпадение набора", []string{"revenue", "contract"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, matched := scoreRecord(record, tt.tokens)
			if score != tt.score {
				t.Errorf("score = %d, ожидается %d", score, tt.score)
			}
			if len(matched) != tt.score {
				t.Errorf("len(matched) = %d, ожидается %d", len(matched), tt.score)
			}
		})
	}
}

// newSearchService — поисковый сервис с щедрым бюджетом для тестов.
func newSearchService(repo repository.KnowledgeRepository) *SearchService {
	return NewSearchService(repo, 5*time.Second, 500, slog.Default())
}

func TestSearch_Ranking(t *testing.T) {
	now := time.Now()
	candidates := []*model.KnowledgeFile{
		// Порядок из репозитория: новые первыми
		{ID: "new-one-token", FileName: "a.txt", Content: "revenue", CreatedAt: now},
		{ID: "old-two-tokens", FileName: "b.txt", Content: "revenue report", CreatedAt: now.Add(-time.Hour)},
		{ID: "older-one-token", FileName: "c.txt", Content: "report", CreatedAt: now.Add(-2 * time.Hour)},
	}

	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(_ context.Context, ownerID string, filters repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			if ownerID != "user-1" {
				t.Errorf("ownerID = %q, ожидается user-1", ownerID)
			}
			if !reflect.DeepEqual(filters.Tokens, []string{"revenue", "report"}) {
				t.Errorf("Tokens = %v", filters.Tokens)
			}
			return candidates, nil
		},
	}

	svc := newSearchService(repo)
	result, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "revenue report"})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	if result.Count != 3 {
		t.Fatalf("Count = %d, ожидается 3", result.Count)
	}
	// Два токена ранжируются выше одного; при равном счёте новее выше
	wantOrder := []string{"old-two-tokens", "new-one-token", "older-one-token"}
	for i, want := range wantOrder {
		if result.Hits[i].File.ID != want {
			t.Errorf("Hits[%d].ID = %q, ожидается %q", i, result.Hits[i].File.ID, want)
		}
	}
	if result.Hits[0].Score != 2 {
		t.Errorf("Hits[0].Score = %d, ожидается 2", result.Hits[0].Score)
	}
}

func TestSearch_LimitAfterRanking(t *testing.T) {
	now := time.Now()
	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(_ context.Context, _ string, _ repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			return []*model.KnowledgeFile{
				{ID: "weak", Content: "revenue", CreatedAt: now},
				{ID: "strong", Content: "revenue report", CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}

	svc := newSearchService(repo)
	result, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "revenue report", Limit: 1})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	// Лимит применяется после ранжирования: остаётся сильнейший, не первый
	if result.Count != 1 || result.Hits[0].File.ID != "strong" {
		t.Errorf("результат = %v, ожидается только strong", result.Hits)
	}
}

func TestSearch_EmptyQueryWithFilters(t *testing.T) {
	cat := "finance"
	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(_ context.Context, _ string, filters repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			if len(filters.Tokens) != 0 {
				t.Errorf("Tokens = %v, ожидается пусто", filters.Tokens)
			}
			if filters.Category == nil || *filters.Category != "finance" {
				t.Errorf("Category = %v, ожидается finance", filters.Category)
			}
			return []*model.KnowledgeFile{
				{ID: "f1"}, {ID: "f2"},
			}, nil
		},
	}

	svc := newSearchService(repo)
	result, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "", Category: &cat})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	// Пустой запрос с фильтрами возвращает все записи под фильтрами
	if result.Count != 2 {
		t.Errorf("Count = %d, ожидается 2", result.Count)
	}
	for _, hit := range result.Hits {
		if hit.Score != 0 {
			t.Errorf("Score = %d, ожидается 0 без токенов", hit.Score)
		}
	}
}

func TestSearch_NoExactMatchExcluded(t *testing.T) {
	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(_ context.Context, _ string, _ repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			// Кандидат без точного совпадения токенов
			return []*model.KnowledgeFile{{ID: "noise", Content: "unrelated text"}}, nil
		},
	}

	svc := newSearchService(repo)
	result, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "invoice"})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("Count = %d, ожидается 0", result.Count)
	}
}

func TestSearch_Timeout(t *testing.T) {
	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(ctx context.Context, _ string, _ repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	svc := NewSearchService(repo, 10*time.Millisecond, 500, slog.Default())
	_, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "invoice"})
	if err != ErrSearchTimeout {
		t.Errorf("Search = %v, ожидается ErrSearchTimeout", err)
	}
}

func TestSearch_LightProjection(t *testing.T) {
	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(_ context.Context, _ string, _ repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			return []*model.KnowledgeFile{
				{ID: "f1", FileName: "a.txt", Content: "invoice text", BinaryData: []byte("raw")},
			}, nil
		},
	}

	svc := newSearchService(repo)
	result, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "invoice"})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	// Результат не тащит тяжёлые поля
	hit := result.Hits[0]
	if hit.File.Content != "" || hit.File.BinaryData != nil {
		t.Error("результат содержит content/binary_data")
	}
}

func TestSearch_Snippets(t *testing.T) {
	repo := &mockKnowledgeRepo{
		searchCandidatesFn: func(_ context.Context, _ string, _ repository.SearchFilters) ([]*model.KnowledgeFile, error) {
			return []*model.KnowledgeFile{
				{ID: "f1", Content: "the quarterly invoice was approved by the finance team without objections"},
			}, nil
		},
	}

	svc := newSearchService(repo)
	result, err := svc.Search(context.Background(), "user-1", SearchQuery{Query: "invoice", IncludeSnippets: true})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	if len(result.Hits[0].Snippets) != 1 {
		t.Fatalf("Snippets = %v, ожидается 1 фрагмент", result.Hits[0].Snippets)
	}
}
