package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Errors returned while loading a migration source.
var (
	ErrNoMigrations     = errors.New("no migrations found")
	ErrInvalidFilename  = errors.New("invalid migration filename")
	ErrDuplicateVersion = errors.New("duplicate migration version")
	ErrMissingUp        = errors.New("migration has no up file")
)

var filenamePattern = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one versioned schema change.
type Migration struct {
	Version uint
	Name    string
	Up      string
	Down    string
}

// HasDown reports whether the migration can be reverted.
func (m Migration) HasDown() bool {
	return strings.TrimSpace(m.Down) != ""
}

// Load reads the migrations for dialect from fsys/<dialect>/ and returns
// them sorted by ascending version.
func Load(fsys fs.FS, dialect string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dialect)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", dialect, err)
	}

	byVersion := make(map[uint]*Migration)
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		match := filenamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFilename, entry.Name())
		}

		v, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFilename, entry.Name())
		}
		version := uint(v)
		name, direction := match[2], match[3]

		// Keyed on the parsed number so 1_x and 000001_x collide.
		key := fmt.Sprintf("%d.%s", version, direction)
		if seen[key] {
			return nil, fmt.Errorf("%w: %d (%s)", ErrDuplicateVersion, version, entry.Name())
		}
		seen[key] = true

		body, err := fs.ReadFile(fsys, path.Join(dialect, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("%w: %d (%s, %s)", ErrDuplicateVersion, version, m.Name, name)
		}

		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	if len(byVersion) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoMigrations, dialect)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("%w: %d_%s", ErrMissingUp, m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// splitStatements breaks a migration body into statements terminated by a
// semicolon at end of line. Blank and comment-only statements are dropped.
func splitStatements(body string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" && !isCommentOnly(stmt) {
			statements = append(statements, stmt)
		}
	}

	for _, line := range strings.Split(body, "\n") {
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			flush()
		}
	}
	flush()

	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == ";" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}
