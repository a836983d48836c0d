package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testWindow(t testing.TB) parser.DateWindow {
	t.Helper()
	w, err := parser.NewDateWindow(config.Window{Start: "2025-10-01", End: "2025-10-10"})
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	return w
}

func newRecord() *types.NewsRecord {
	return &types.NewsRecord{
		Title:   "  山西国庆\n  旅游  ",
		Date:    "2025-10-03",
		URL:     " https://example.com/a.html ",
		Content: "  正文  ",
		Source:  "新华网",
	}
}

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	result, err := p.Process(newRecord())
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Title != "山西国庆 旅游" {
		t.Errorf("expected collapsed title, got %q", result.Title)
	}
	if result.URL != "https://example.com/a.html" {
		t.Errorf("expected trimmed url, got %q", result.URL)
	}
	if result.Content != "正文" {
		t.Errorf("expected trimmed content, got %q", result.Content)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"title", "url"}}

	result, err := m.Process(newRecord())
	if err != nil || result == nil {
		t.Error("record with required fields should pass")
	}

	rec := newRecord()
	rec.URL = ""
	result, _ = m.Process(rec)
	if result != nil {
		t.Error("record missing url should be dropped (nil)")
	}

	rec = newRecord()
	rec.Content = ""
	result, _ = m.Process(rec)
	if result == nil {
		t.Error("content is not required")
	}
}

func TestTruncateMiddleware(t *testing.T) {
	m := &TruncateMiddleware{MaxRunes: 5}
	rec := newRecord()
	rec.Content = strings.Repeat("文", 12)

	result, _ := m.Process(rec)
	if got := parser.RuneLen(result.Content); got != 5 {
		t.Errorf("expected 5 runes, got %d", got)
	}
}

func TestDateWindowMiddleware(t *testing.T) {
	m := &DateWindowMiddleware{Window: testWindow(t)}

	tests := []struct {
		input    string
		expected string
	}{
		{"2025-10-01", "2025-10-01"},
		{"2025-10-10", "2025-10-10"},
		{"2025-10-11", "2025-10"},
		{"2025-09-30", "2025-10"},
		{"2025-10", "2025-10"},
		{"", "2025-10"},
		{"not a date", "2025-10"},
	}

	for _, tt := range tests {
		rec := newRecord()
		rec.Date = tt.input

		result, _ := m.Process(rec)
		if result.Date != tt.expected {
			t.Errorf("date %q: expected %q, got %q", tt.input, tt.expected, result.Date)
		}
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }

func (failingMiddleware) Process(*types.NewsRecord) (*types.NewsRecord, error) {
	return nil, errors.New("boom")
}

func TestPipelineWrapsStageErrors(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(failingMiddleware{})

	_, err := p.Process(newRecord())
	var perr *types.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if perr.Stage != "failing" {
		t.Errorf("expected stage failing, got %q", perr.Stage)
	}
}

func TestDefaultPipeline(t *testing.T) {
	p := Default(config.DefaultConfig(), testWindow(t), testLogger)
	if p.Len() != 4 {
		t.Fatalf("expected 4 middleware, got %d", p.Len())
	}

	rec := newRecord()
	rec.Date = "2024-10-03"
	rec.Content = strings.Repeat("字", 1500)

	result, err := p.Process(rec)
	if err != nil || result == nil {
		t.Fatalf("expected record to pass, got %v", err)
	}
	if result.Date != "2025-10" {
		t.Errorf("expected fallback date, got %q", result.Date)
	}
	if got := parser.RuneLen(result.Content); got != 1000 {
		t.Errorf("expected 1000 runes, got %d", got)
	}
}

// --- Benchmarks ---

func BenchmarkPipeline(b *testing.B) {
	p := Default(config.DefaultConfig(), testWindow(b), testLogger)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Process(newRecord())
	}
}
