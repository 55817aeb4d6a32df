package service

import (
	"strings"
	"testing"
)

func TestBuildSnippets_SingleMatch(t *testing.T) {
	content := strings.Repeat("padding ", 20) + "the invoice was approved " + strings.Repeat("padding ", 20)

	snippets := BuildSnippets(content, []string{"invoice"}, 80, 2)
	if len(snippets) != 1 {
		t.Fatalf("len(snippets) = %d, ожидается 1", len(snippets))
	}
	if !strings.Contains(snippets[0], "invoice") {
		t.Errorf("сниппет не содержит совпадение: %q", snippets[0])
	}
	// Окно вырезано из середины, края помечены многоточием
	if !strings.HasPrefix(snippets[0], "…") || !strings.HasSuffix(snippets[0], "…") {
		t.Errorf("нет многоточий на усечённых краях: %q", snippets[0])
	}
}

func TestBuildSnippets_CaseInsensitive(t *testing.T) {
	snippets := BuildSnippets("The INVOICE was approved", []string{"invoice"}, 80, 2)
	if len(snippets) != 1 {
		t.Fatalf("len(snippets) = %d, ожидается 1", len(snippets))
	}
	// Сниппет сохраняет оригинальный регистр
	if !strings.Contains(snippets[0], "INVOICE") {
		t.Errorf("сниппет изменил регистр: %q", snippets[0])
	}
}

func TestBuildSnippets_OverlappingWindowsMerged(t *testing.T) {
	// Два токена рядом: окна перекрываются и сливаются в одно
	content := strings.Repeat("x ", 50) + "quarterly invoice report approved" + strings.Repeat(" y", 50)

	snippets := BuildSnippets(content, []string{"invoice", "report"}, 80, 2)
	if len(snippets) != 1 {
		t.Fatalf("len(snippets) = %d, ожидается 1 после слияния: %v", len(snippets), snippets)
	}
	if !strings.Contains(snippets[0], "invoice") || !strings.Contains(snippets[0], "report") {
		t.Errorf("слитый сниппет не содержит оба совпадения: %q", snippets[0])
	}
}

func TestBuildSnippets_MaxWindows(t *testing.T) {
	// Три далеко разнесённых совпадения, но максимум 2 сниппета
	var sb strings.Builder
	for _, token := range []string{"alpha", "beta", "gamma"} {
		sb.WriteString(token)
		sb.WriteString(strings.Repeat(" filler", 100))
	}

	snippets := BuildSnippets(sb.String(), []string{"alpha", "beta", "gamma"}, 80, 2)
	if len(snippets) != 2 {
		t.Fatalf("len(snippets) = %d, ожидается 2", len(snippets))
	}
}

func TestBuildSnippets_NoMatch(t *testing.T) {
	if got := BuildSnippets("some unrelated text", []string{"invoice"}, 80, 2); got != nil {
		t.Errorf("BuildSnippets = %v, ожидается nil", got)
	}
}

func TestBuildSnippets_EmptyInputs(t *testing.T) {
	if got := BuildSnippets("", []string{"invoice"}, 80, 2); got != nil {
		t.Errorf("пустой content: %v", got)
	}
	if got := BuildSnippets("text", nil, 80, 2); got != nil {
		t.Errorf("пустые токены: %v", got)
	}
	if got := BuildSnippets("text", []string{"text"}, 80, 0); got != nil {
		t.Errorf("max=0: %v", got)
	}
}

func TestBuildSnippets_ShortContent(t *testing.T) {
	snippets := BuildSnippets("short invoice text", []string{"invoice"}, 80, 2)
	if len(snippets) != 1 {
		t.Fatalf("len(snippets) = %d, ожидается 1", len(snippets))
	}
	// Content короче окна: без многоточий
	if strings.Contains(snippets[0], "…") {
		t.Errorf("многоточие на неусечённом сниппете: %q", snippets[0])
	}
	if snippets[0] != "short invoice text" {
		t.Errorf("сниппет = %q", snippets[0])
	}
}

func TestBuildSnippets_Unicode(t *testing.T) {
	content := "Отчёт за первый квартал: выручка выросла"
	snippets := BuildSnippets(content, []string{"выручка"}, 80, 2)
	if len(snippets) != 1 {
		t.Fatalf("len(snippets) = %d, ожидается 1", len(snippets))
	}
	if !strings.Contains(snippets[0], "выручка") {
		t.Errorf("сниппет не содержит кириллическое совпадение: %q", snippets[0])
	}
}

func TestCollapseSpace(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a  b", "a b"},
		{"a\n\tb", "a b"},
		{"  a  ", "a"},
	}
	for _, tt := range tests {
		if got := collapseSpace(tt.input); got != tt.expected {
			t.Errorf("collapseSpace(%q) = %q, ожидается %q", tt.input, got, tt.expected)
		}
	}
}
