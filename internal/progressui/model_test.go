package progressui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestProgressIsClampedAndShown(t *testing.T) {
	m := NewModel(nil)
	m.Update(ProgressMsg(0.5))
	if m.Percent() != 0.5 {
		t.Fatalf("expected 0.5, got %v", m.Percent())
	}
	m.Update(ProgressMsg(1.7))
	if m.Percent() != 1 {
		t.Fatalf("expected clamp to 1, got %v", m.Percent())
	}
	if !strings.Contains(m.View(), "Exporting your CSV data...") {
		t.Fatalf("missing running title: %s", m.View())
	}
}

func TestDoneThenDismissResetsProgress(t *testing.T) {
	m := NewModel(nil)
	m.Update(ProgressMsg(0.4))
	m.Update(DoneMsg{Location: "/tmp/out.csv", Learners: 3})

	view := m.View()
	for _, want := range []string{"Export successful!", "3 learners saved to /tmp/out.csv"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q: %s", want, view)
		}
	}
	if m.Percent() != 1 {
		t.Fatalf("expected 1 after done, got %v", m.Percent())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected quit command on dismiss")
	}
	if m.Percent() != 0 {
		t.Fatalf("expected progress reset to 0, got %v", m.Percent())
	}
}

func TestErrorResetsProgress(t *testing.T) {
	m := NewModel(nil)
	m.Update(ProgressMsg(0.6))
	_, cmd := m.Update(ErrMsg{Err: errors.New("status 500")})
	if cmd != nil {
		t.Fatalf("expected error to wait for dismiss")
	}
	if m.Percent() != 0 {
		t.Fatalf("expected 0 after failure, got %v", m.Percent())
	}
	if !strings.Contains(m.View(), "Export failed: status 500") {
		t.Fatalf("missing failure line: %s", m.View())
	}
	m.Update(ProgressMsg(0.9))
	if m.Percent() != 0 {
		t.Fatalf("progress after failure should be ignored, got %v", m.Percent())
	}
}

func TestCtrlCCancelsRunningExport(t *testing.T) {
	cancelled := false
	m := NewModel(func() { cancelled = true })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Fatalf("expected cancel to be called")
	}
	if cmd != nil {
		t.Fatalf("expected to wait for the job to stop")
	}
	_, cmd = m.Update(ErrMsg{Err: context.Canceled})
	if cmd == nil {
		t.Fatalf("expected quit once the job reports cancellation")
	}
}

func TestKeysIgnoredWhileRunning(t *testing.T) {
	m := NewModel(nil)
	m.Update(ProgressMsg(0.3))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected no command while running")
	}
	if m.Percent() != 0.3 {
		t.Fatalf("progress changed: %v", m.Percent())
	}
}
