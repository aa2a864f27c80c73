package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerlens/ledgerlens/internal/examples"
)

func TestBuildRendersExamplesInOrder(t *testing.T) {
	selected := []examples.Example{
		{Input: "total debit", Output: "SELECT SUM(DEBIT) FROM account_statement", Description: "debits"},
		{Input: "total credit", Output: "SELECT SUM(CREDIT) FROM account_statement"},
	}
	p, err := Build("how much did I spend", selected, Template{
		Prefix:             "You write PostgreSQL.",
		Suffix:             "User input: {input}\nSQL output:",
		IncludeDescription: true,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := "You write PostgreSQL.\n\n" +
		"User input: total debit\nSQL output: SELECT SUM(DEBIT) FROM account_statement\nDescription: debits\n\n" +
		"User input: total credit\nSQL output: SELECT SUM(CREDIT) FROM account_statement\nDescription: \n\n" +
		"User input: how much did I spend\nSQL output:"
	if got := p.String(); got != want {
		t.Fatalf("String() =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildOmitsDescriptionWhenNotRequested(t *testing.T) {
	p, err := Build("q", []examples.Example{{Input: "a", Output: "SELECT 1", Description: "ignored"}}, Template{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := p.String(); got != "User input: a\nSQL output: SELECT 1\n\nq" {
		t.Fatalf("String() = %q", got)
	}
}

func TestBuildAppendsQuestionWithoutPlaceholder(t *testing.T) {
	p, err := Build("q", nil, Template{Prefix: "P", Suffix: "S"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := p.String(); got != "P\n\nS\n\nq" {
		t.Fatalf("String() = %q", got)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	selected := []examples.Example{{Input: "a", Output: "SELECT 1"}}
	tmpl := Template{Prefix: "P", Suffix: "{input}"}
	first, _ := Build("q", selected, tmpl)
	second, _ := Build("q", selected, tmpl)
	if first.String() != second.String() {
		t.Fatal("Build() should be deterministic")
	}
}

func TestBuildRejectsExampleWithoutOutput(t *testing.T) {
	_, err := Build("q", []examples.Example{{Input: "a"}}, Template{})
	if !errors.Is(err, ErrMissingOutput) {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	prefixPath := filepath.Join(dir, "prefix.txt")
	if err := os.WriteFile(prefixPath, []byte("prefix"), 0o600); err != nil {
		t.Fatalf("write prefix: %v", err)
	}
	tmpl, err := LoadTemplate(prefixPath, "", true)
	if err != nil {
		t.Fatalf("LoadTemplate() error = %v", err)
	}
	if tmpl.Prefix != "prefix" || tmpl.Suffix != "" || !tmpl.IncludeDescription {
		t.Fatalf("Template = %+v", tmpl)
	}
	if _, err := LoadTemplate(filepath.Join(dir, "missing.txt"), "", false); err == nil {
		t.Fatal("expected missing file error")
	}
}
