package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	uploadsRoot = "uploads"
	exportsRoot = "exports"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	unsafeNameChars      = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// UploadKey places an uploaded file under uploads/YYYY/MM/DD/<id>-<name>.
// The file name is reduced to its base and unsafe characters become "_".
func UploadKey(fileName, id string, at time.Time) (string, error) {
	if err := validatePathComponent(id, "object id"); err != nil {
		return "", err
	}
	name := sanitizeFileName(fileName)
	if name == "" {
		return "", fmt.Errorf("invalid file name: %q", fileName)
	}
	return path.Join(uploadsRoot, datePrefix(at), id+"-"+name), nil
}

// ExportKey places a table export under exports/<table>/YYYY/MM/DD/<id><ext>.
func ExportKey(table, extension, id string, at time.Time) (string, error) {
	if err := validatePathComponent(table, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(id, "object id"); err != nil {
		return "", err
	}
	if !strings.HasPrefix(extension, ".") || strings.ContainsAny(extension, "/\\") {
		return "", fmt.Errorf("invalid extension: %q", extension)
	}
	return path.Join(exportsRoot, table, datePrefix(at), id+extension), nil
}

func datePrefix(at time.Time) string {
	ts := at.UTC()
	return fmt.Sprintf("%04d/%02d/%02d", ts.Year(), ts.Month(), ts.Day())
}

func sanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if len(base) > 128 {
		base = base[len(base)-128:]
	}
	return base
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
