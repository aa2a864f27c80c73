// Package prompt renders the few-shot prompt sent to the completion backend.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/examples"
)

const inputPlaceholder = "{input}"

var ErrMissingOutput = examples.ErrMissingOutput

type Template struct {
	Prefix             string
	Suffix             string
	IncludeDescription bool
}

// LoadTemplate reads prefix and suffix text files. An empty path leaves the
// corresponding part blank.
func LoadTemplate(prefixPath, suffixPath string, includeDescription bool) (Template, error) {
	prefix, err := readOptional(prefixPath)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt prefix: %w", err)
	}
	suffix, err := readOptional(suffixPath)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt suffix: %w", err)
	}
	return Template{Prefix: prefix, Suffix: suffix, IncludeDescription: includeDescription}, nil
}

func readOptional(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type Prompt struct {
	Prefix   string
	Examples []string
	Suffix   string
	Question string
}

func Build(question string, selected []examples.Example, tmpl Template) (Prompt, error) {
	rendered := make([]string, 0, len(selected))
	for i, example := range selected {
		if strings.TrimSpace(example.Output) == "" {
			return Prompt{}, fmt.Errorf("example %d (%q): %w", i, example.Input, ErrMissingOutput)
		}
		rendered = append(rendered, renderExample(example, tmpl.IncludeDescription))
	}
	return Prompt{
		Prefix:   tmpl.Prefix,
		Examples: rendered,
		Suffix:   tmpl.Suffix,
		Question: question,
	}, nil
}

func renderExample(example examples.Example, includeDescription bool) string {
	var b strings.Builder
	b.WriteString("User input: ")
	b.WriteString(example.Input)
	b.WriteString("\nSQL output: ")
	b.WriteString(example.Output)
	if includeDescription {
		b.WriteString("\nDescription: ")
		b.WriteString(example.Description)
	}
	return b.String()
}

// String joins the non-empty parts with blank lines. The question replaces
// the {input} placeholder in the suffix, or is appended when there is none.
func (p Prompt) String() string {
	parts := make([]string, 0, len(p.Examples)+3)
	if p.Prefix != "" {
		parts = append(parts, p.Prefix)
	}
	parts = append(parts, p.Examples...)
	switch {
	case strings.Contains(p.Suffix, inputPlaceholder):
		parts = append(parts, strings.ReplaceAll(p.Suffix, inputPlaceholder, p.Question))
	case p.Suffix != "":
		parts = append(parts, p.Suffix, p.Question)
	default:
		parts = append(parts, p.Question)
	}
	return strings.Join(parts, "\n\n")
}
