package examples

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ledgerlens/ledgerlens/internal/tabular"
)

var ErrMissingOutput = errors.New("example is missing its output")

// Load reads a collection from .yaml, .yml, .json, .csv or .xlsx. Document
// formats accept either a top-level list or an "examples" key.
func Load(path string) (Collection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Collection{}, fmt.Errorf("read examples %s: %w", path, err)
		}
		return parseDocument(raw)
	case ".csv", ".xlsx":
		table, err := tabular.ReadFile(path)
		if err != nil {
			return Collection{}, fmt.Errorf("read examples %s: %w", path, err)
		}
		return fromTable(table)
	default:
		return Collection{}, fmt.Errorf("unsupported examples file %q", path)
	}
}

func parseDocument(raw []byte) (Collection, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return Collection{}, fmt.Errorf("parse examples: %w", err)
	}
	if len(root.Content) == 0 {
		return Collection{}, nil
	}
	list := root.Content[0]
	if list.Kind == yaml.MappingNode {
		list = mappingValue(list, "examples")
		if list == nil {
			return Collection{}, fmt.Errorf("parse examples: expected a list or an examples key")
		}
	}
	if list.Kind != yaml.SequenceNode {
		return Collection{}, fmt.Errorf("parse examples: expected a list of examples")
	}

	collection := Collection{Examples: make([]Example, 0, len(list.Content))}
	for i, item := range list.Content {
		if item.Kind != yaml.MappingNode {
			return Collection{}, fmt.Errorf("example %d: expected a mapping", i)
		}
		if mappingValue(item, "output") == nil {
			return Collection{}, fmt.Errorf("example %d: %w", i, ErrMissingOutput)
		}
		if i == 0 && mappingValue(item, "description") != nil {
			collection.HasDescriptions = true
		}
		var example Example
		if err := item.Decode(&example); err != nil {
			return Collection{}, fmt.Errorf("example %d: %w", i, err)
		}
		collection.Examples = append(collection.Examples, example)
	}
	return collection, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func fromTable(table tabular.Table) (Collection, error) {
	inputIdx, outputIdx, descriptionIdx := -1, -1, -1
	for i, header := range table.Headers {
		switch strings.ToLower(strings.TrimSpace(header)) {
		case "input":
			inputIdx = i
		case "output":
			outputIdx = i
		case "description":
			descriptionIdx = i
		}
	}
	if inputIdx < 0 {
		return Collection{}, fmt.Errorf("examples table has no input column")
	}
	if outputIdx < 0 {
		return Collection{}, fmt.Errorf("examples table: %w", ErrMissingOutput)
	}

	collection := Collection{
		Examples:        make([]Example, 0, len(table.Rows)),
		HasDescriptions: descriptionIdx >= 0,
	}
	for i, row := range table.Rows {
		example := Example{Input: row[inputIdx], Output: row[outputIdx]}
		if strings.TrimSpace(example.Output) == "" {
			return Collection{}, fmt.Errorf("example row %d: %w", i+2, ErrMissingOutput)
		}
		if descriptionIdx >= 0 {
			example.Description = row[descriptionIdx]
		}
		collection.Examples = append(collection.Examples, example)
	}
	return collection, nil
}
