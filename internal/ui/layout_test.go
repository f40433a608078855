package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestLayout_Heights(t *testing.T) {
	l := NewLayout(80, 24)
	if got := l.ContentHeight(); got != 22 {
		t.Fatalf("expected content height 22, got %d", got)
	}
	if got := l.InboxHeight(); got != 20 {
		t.Fatalf("expected inbox height 20, got %d", got)
	}

	tiny := NewLayout(10, 1)
	if tiny.ContentHeight() != 0 || tiny.InboxHeight() != 0 {
		t.Fatalf("expected heights to floor at zero, got %d/%d", tiny.ContentHeight(), tiny.InboxHeight())
	}
}

func TestLayout_HeaderSpansWidth(t *testing.T) {
	l := NewLayout(60, 20)
	header := l.RenderHeader("Temp Mail [2 new]", "Checking...")
	if w := lipgloss.Width(header); w != 60 {
		t.Fatalf("expected header width 60, got %d", w)
	}
	if !strings.Contains(header, "[2 new]") || !strings.Contains(header, "Checking...") {
		t.Fatalf("unexpected header %q", header)
	}
}

func TestLayout_StatusBarNotice(t *testing.T) {
	l := NewLayout(60, 20)
	if bar := l.RenderStatusBar("q quit", "", false); !strings.Contains(bar, "q quit") {
		t.Fatalf("expected hints, got %q", bar)
	}
	bar := l.RenderStatusBar("q quit", "Saved to archive", false)
	if strings.Contains(bar, "q quit") || !strings.Contains(bar, "Saved to archive") {
		t.Fatalf("expected notice to replace hints, got %q", bar)
	}
}

func TestLayout_AddressBar(t *testing.T) {
	l := NewLayout(80, 20)
	if bar := l.RenderAddressBar("Your address", "", "", false); strings.Contains(bar, "@") {
		t.Fatalf("expected no address, got %q", bar)
	}
	bar := l.RenderAddressBar("Your address", "x@temp.test", "Copied!", true)
	if !strings.Contains(bar, "x@temp.test") || !strings.Contains(bar, "Copied!") {
		t.Fatalf("unexpected address bar %q", bar)
	}
	if l.RenderErrorBanner("session_expired", "") != "" {
		t.Fatal("expected empty banner without a message")
	}
}
