package table

import (
	"strings"
	"testing"
)

func TestFormatAlignsColumns(t *testing.T) {
	headers := []string{"Course", "Learners", "Done"}
	rows := [][]string{
		{"a", "97", "12"},
		{"<intro>", "8", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := Format(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Course  Learners Done" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "a             97   12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "<intro>        8    3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatUsesCellWidth(t *testing.T) {
	lines := Format([]string{"名前", "x"}, [][]string{{"ab", "1"}}, nil)
	if lines[1] != "ab   1" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
}

func TestFprintTrimsTrailingSpace(t *testing.T) {
	var sb strings.Builder
	if err := Fprint(&sb, []string{"id", "name"}, [][]string{{"C10", ""}}, nil); err != nil {
		t.Fatalf("fprint: %v", err)
	}
	if sb.String() != "id  name\nC10\n" {
		t.Fatalf("unexpected output: %q", sb.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
