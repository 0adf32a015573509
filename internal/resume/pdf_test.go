package resume

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/careerscope/careerscope/internal/keywords"
)

func TestTextRejectsNonPDF(t *testing.T) {
	_, err := Text(strings.NewReader("OBJECTIVE Highly organized graduate"))
	if !errors.Is(err, ErrNotPDF) {
		t.Errorf("got %v, want ErrNotPDF", err)
	}
}

func TestTextMalformedPDF(t *testing.T) {
	_, err := Text(strings.NewReader("%PDF-1.4\nthis is not really a pdf"))
	if err == nil {
		t.Fatal("expected error for truncated PDF")
	}
	if errors.Is(err, ErrNotPDF) {
		t.Errorf("header is valid; got ErrNotPDF")
	}
}

func TestTextTooLarge(t *testing.T) {
	big := strings.NewReader("%PDF-" + strings.Repeat("x", MaxSize))
	if _, err := Text(big); err == nil {
		t.Error("expected size error")
	}
}

func TestTextFromFileMissing(t *testing.T) {
	if _, err := TextFromFile(filepath.Join(t.TempDir(), "none.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want os.ErrNotExist", err)
	}
}

func TestTextFromFile(t *testing.T) {
	text, err := TextFromFile(filepath.Join("testdata", "resume.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "python, sql and autocad") {
		t.Fatalf("text = %q, want resume line", text)
	}

	found := keywords.NewExtractor([]string{"python", "sql", "autocad", "excel"}).Extract(text)
	got := strings.Join(found.Sorted(), ",")
	if got != "autocad,python,sql" {
		t.Errorf("keywords = %q, want autocad,python,sql", got)
	}
}

func TestTextReader(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "resume.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	text, err := Text(strings.NewReader(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Skills:") {
		t.Errorf("text = %q", text)
	}
}
