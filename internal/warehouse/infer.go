package warehouse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const minVarcharLength = 255

var nonIdentChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CleanColumnName upper-cases a header and replaces every character outside
// [A-Za-z0-9] with an underscore.
func CleanColumnName(header string) string {
	return nonIdentChars.ReplaceAllString(strings.ToUpper(strings.TrimSpace(header)), "_")
}

// TableNameFromFile derives a table name from an upload file name: the
// extension is dropped, the rest lower-cased with non-alphanumerics replaced
// by underscores, and "f_" is prepended unless it starts with a letter.
func TableNameFromFile(fileName string) string {
	base := fileName
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	name := nonIdentChars.ReplaceAllString(strings.ToLower(base), "_")
	if name == "" || !isASCIILetter(name[0]) {
		name = "f_" + name
	}
	return name
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

type importColumn struct {
	Name    string
	SQLType string
	Kind    ColumnKind
}

// inferColumn picks the narrowest type every non-empty value fits. Only
// columns whose name mentions DATE or TIME are considered for dates.
func inferColumn(name string, values []string) importColumn {
	nonEmpty := 0
	allInt, allFloat, allBool, allDate := true, true, true, true
	dateCandidate := strings.Contains(name, "DATE") || strings.Contains(name, "TIME")
	longest := 0
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if n := utf8.RuneCountInString(value); n > longest {
			longest = n
		}
		if value == "" {
			continue
		}
		nonEmpty++
		if allInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(value); !ok {
				allBool = false
			}
		}
		if allDate && dateCandidate {
			if _, err := ParseDate(value); err != nil {
				allDate = false
			}
		}
	}

	switch {
	case nonEmpty == 0:
		return importColumn{Name: name, SQLType: varchar(longest), Kind: KindText}
	case dateCandidate && allDate:
		return importColumn{Name: name, SQLType: "DATE", Kind: KindDate}
	case allInt:
		return importColumn{Name: name, SQLType: "BIGINT", Kind: KindInteger}
	case allFloat:
		return importColumn{Name: name, SQLType: "DOUBLE PRECISION", Kind: KindFloat}
	case allBool:
		return importColumn{Name: name, SQLType: "BOOLEAN", Kind: KindBoolean}
	default:
		return importColumn{Name: name, SQLType: varchar(longest), Kind: KindText}
	}
}

func varchar(longest int) string {
	if longest < minVarcharLength {
		longest = minVarcharLength
	}
	return fmt.Sprintf("VARCHAR(%d)", longest)
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// convert turns a cell into the Go value bound for its column. Empty cells
// become NULL.
func (c importColumn) convert(raw string) (any, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	switch c.Kind {
	case KindDate:
		return ParseDate(value)
	case KindInteger:
		return strconv.ParseInt(value, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(value, 64)
	case KindBoolean:
		parsed, ok := parseBool(value)
		if !ok {
			return nil, fmt.Errorf("invalid boolean %q", value)
		}
		return parsed, nil
	default:
		return raw, nil
	}
}

func dedupeNames(names []string) []string {
	used := make(map[string]bool, len(names))
	for _, name := range names {
		used[name] = true
	}
	taken := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		if name == "" {
			name = fmt.Sprintf("COLUMN_%d", i+1)
		}
		if taken[name] {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if !taken[name] && !used[name] {
					break
				}
			}
		}
		taken[name] = true
		out[i] = name
	}
	return out
}
