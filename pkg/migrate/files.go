package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	versionLayout  = "20060102150405"
	directiveUp    = "-- +goose Up"
	directiveDown  = "-- +goose Down"
	statementBegin = "-- +goose StatementBegin"
	statementEnd   = "-- +goose StatementEnd"
)

var (
	migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	slugRe          = regexp.MustCompile(`[^a-z0-9]+`)

	clock = func() time.Time { return time.Now().UTC() }
)

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", clock().Format(versionLayout), slug))
	body := strings.Join([]string{
		directiveUp,
		statementBegin,
		"-- " + slug,
		statementEnd,
		"",
		directiveDown,
		statementBegin,
		"-- revert " + slug,
		statementEnd,
		"",
	}, "\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	_, werr := f.WriteString(body)
	if err := multierr.Combine(werr, f.Close()); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// ValidateDir checks every .sql file in dir and reports all problems at once:
// file naming, duplicate versions, missing Up/Down sections and unbalanced
// statement blocks.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	versions := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := migrationFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := versions[m[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
		}
		versions[m[1]] = name

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkDirectives(name, string(content)))
	}
	return errs
}

func checkDirectives(name, content string) error {
	var errs error
	up := strings.Index(content, directiveUp)
	down := strings.Index(content, directiveDown)
	switch {
	case up < 0:
		errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, directiveUp))
	case down < 0:
		errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, directiveDown))
	case down < up:
		errs = multierr.Append(errs, fmt.Errorf("%s: down section precedes up section", name))
	}
	if b, e := strings.Count(content, statementBegin), strings.Count(content, statementEnd); b != e {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d StatementBegin vs %d StatementEnd", name, b, e))
	}
	return errs
}
