package migrate

import (
	"errors"
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/hellodevops/greeter/migrations"
)

func TestLoad_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sqlite/000010_later.up.sql":    {Data: []byte("SELECT 10;")},
		"sqlite/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"sqlite/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"sqlite/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
	}

	got, err := Load(fsys, "sqlite")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var versions []uint
	for _, m := range got {
		versions = append(versions, m.Version)
	}
	if !reflect.DeepEqual(versions, []uint{1, 2, 10}) {
		t.Errorf("versions = %v, want [1 2 10]", versions)
	}

	if got[1].Name != "second" || !got[1].HasDown() {
		t.Errorf("unexpected second migration: %+v", got[1])
	}
	if got[0].HasDown() {
		t.Error("first migration should have no down")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr error
	}{
		{
			name: "bad filename",
			fsys: fstest.MapFS{
				"sqlite/create_users.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: ErrInvalidFilename,
		},
		{
			name: "conflicting names for one version",
			fsys: fstest.MapFS{
				"sqlite/000001_a.up.sql": {Data: []byte("SELECT 1;")},
				"sqlite/000001_b.up.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: ErrDuplicateVersion,
		},
		{
			name: "same version with different padding",
			fsys: fstest.MapFS{
				"sqlite/1_init.up.sql":      {Data: []byte("CREATE TABLE a (id INT);")},
				"sqlite/000001_init.up.sql": {Data: []byte("CREATE TABLE b (id INT);")},
			},
			wantErr: ErrDuplicateVersion,
		},
		{
			name: "same version with different padding on down",
			fsys: fstest.MapFS{
				"sqlite/000001_init.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
				"sqlite/01_init.down.sql":   {Data: []byte("DROP TABLE a;")},
				"sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE b;")},
			},
			wantErr: ErrDuplicateVersion,
		},
		{
			name: "down without up",
			fsys: fstest.MapFS{
				"sqlite/000001_a.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: ErrMissingUp,
		},
		{
			name: "empty directory",
			fsys: fstest.MapFS{
				"sqlite/readme": {Mode: fs.ModeDir | 0o755},
			},
			wantErr: ErrNoMigrations,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(tt.fsys, "sqlite")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EmbeddedDialectsAgree(t *testing.T) {
	t.Parallel()

	var reference []Migration
	for _, dialect := range []string{"sqlite", "postgres", "mysql"} {
		got, err := Load(migrations.FS, dialect)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", dialect, err)
		}

		for _, m := range got {
			if !m.HasDown() {
				t.Errorf("%s migration %d_%s has no down file", dialect, m.Version, m.Name)
			}
		}

		if reference == nil {
			reference = got
			continue
		}
		if len(got) != len(reference) {
			t.Fatalf("%s has %d migrations, sqlite has %d", dialect, len(got), len(reference))
		}
		for i := range got {
			if got[i].Version != reference[i].Version || got[i].Name != reference[i].Name {
				t.Errorf("%s migration %d_%s does not match sqlite %d_%s",
					dialect, got[i].Version, got[i].Name, reference[i].Version, reference[i].Name)
			}
		}
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "single",
			body: "CREATE TABLE a (id INT);\n",
			want: []string{"CREATE TABLE a (id INT);"},
		},
		{
			name: "multiple",
			body: "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);",
			want: []string{"CREATE TABLE a (id INT);", "CREATE TABLE b (id INT);"},
		},
		{
			name: "multiline statement",
			body: "CREATE TABLE a (\n    id INT\n);\n",
			want: []string{"CREATE TABLE a (\n    id INT\n);"},
		},
		{
			name: "leading comment kept with statement",
			body: "-- users\nDROP TABLE a;\n",
			want: []string{"-- users\nDROP TABLE a;"},
		},
		{
			name: "comment only",
			body: "-- nothing to do\n",
			want: nil,
		},
		{
			name: "no trailing semicolon",
			body: "SELECT 1",
			want: []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := splitStatements(tt.body)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitStatements() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmbeddedMySQLMigrations_OneStatementEach(t *testing.T) {
	t.Parallel()

	got, err := Load(migrations.FS, "mysql")
	if err != nil {
		t.Fatalf("Load(mysql) failed: %v", err)
	}

	// A second statement would run after the first was already committed.
	for _, m := range got {
		for direction, body := range map[string]string{"up": m.Up, "down": m.Down} {
			if n := len(splitStatements(body)); n != 1 {
				t.Errorf("mysql %d_%s.%s.sql has %d statements, want 1", m.Version, m.Name, direction, n)
			}
		}
	}
}
