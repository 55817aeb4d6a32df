package repository

import (
	"strings"
	"testing"

	"github.com/bigkaa/goknowbase/internal/domain/model"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeLike(tt.input); got != tt.expected {
				t.Errorf("escapeLike(%q) = %q, ожидается %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBuildSearchWhere(t *testing.T) {
	cat := "finance"
	where, args := buildSearchWhere("user-1", SearchFilters{
		Category: &cat,
		Tags:     []string{"report"},
		Tokens:   []string{"revenue", "q1"},
	})

	if !strings.HasPrefix(where, "WHERE owner_id = $1") {
		t.Errorf("WHERE не начинается с условия владельца: %q", where)
	}
	if !strings.Contains(where, "category = $2") {
		t.Errorf("нет условия категории: %q", where)
	}
	if !strings.Contains(where, "tags @> $3") {
		t.Errorf("нет условия тегов: %q", where)
	}
	// Условия токенов соединяются через OR
	if !strings.Contains(where, "ILIKE $4") || !strings.Contains(where, "ILIKE $5") {
		t.Errorf("нет ILIKE-условий токенов: %q", where)
	}
	// owner, category, tags, два паттерна токенов
	if len(args) != 5 {
		t.Fatalf("len(args) = %d, ожидается 5: %v", len(args), args)
	}
	if args[3] != "%revenue%" || args[4] != "%q1%" {
		t.Errorf("паттерны токенов = %v, %v", args[3], args[4])
	}
}

func TestBuildSearchWhere_OwnerOnly(t *testing.T) {
	where, args := buildSearchWhere("user-1", SearchFilters{})
	if where != "WHERE owner_id = $1" {
		t.Errorf("WHERE = %q, ожидается только условие владельца", where)
	}
	if len(args) != 1 {
		t.Errorf("len(args) = %d, ожидается 1", len(args))
	}
}

func TestBuildUpdateSet(t *testing.T) {
	name := "new.txt"
	empty := ""
	tags := []string{"a"}

	set, args := buildUpdateSet(model.UpdateFields{
		FileName: &name,
		Category: &empty,
		Tags:     &tags,
	}, 3)

	if !strings.HasPrefix(set, "updated_at = now()") {
		t.Errorf("SET не продвигает updated_at: %q", set)
	}
	if !strings.Contains(set, "file_name = $3") {
		t.Errorf("нет file_name: %q", set)
	}
	// Пустая категория превращается в NULL без аргумента
	if !strings.Contains(set, "category = NULL") {
		t.Errorf("пустая категория не снимается: %q", set)
	}
	if !strings.Contains(set, "tags = $4") {
		t.Errorf("нет tags: %q", set)
	}
	if len(args) != 2 {
		t.Errorf("len(args) = %d, ожидается 2: %v", len(args), args)
	}
}

func TestBuildUpdateSet_Empty(t *testing.T) {
	set, args := buildUpdateSet(model.UpdateFields{}, 3)
	if set != "updated_at = now()" {
		t.Errorf("SET = %q, ожидается только updated_at", set)
	}
	if len(args) != 0 {
		t.Errorf("len(args) = %d, ожидается 0", len(args))
	}
}
