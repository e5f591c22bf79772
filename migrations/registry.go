// Package migrations exposes the embedded checkout schema per SQL dialect and
// hands it to a persistence client for registration.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	checkout "github.com/goliatone/go-checkout"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	migrationsDir = "data/sql/migrations"
	sourceLabel   = "go-checkout"
)

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "pg":
		return DialectPostgres, nil
	case "sqlite3", "sqlite", "":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// Source is the migration set for one dialect. Versions lists the migration
// names without the .up.sql/.down.sql suffix, in apply order.
type Source struct {
	Dialect  string
	Dir      string
	FS       fs.FS
	Versions []string
}

// RegisterFunc receives each selected source, typically forwarding FS to
// persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type registerOptions struct {
	label   string
	targets []string
	root    fs.FS
}

type Option func(*registerOptions)

// WithValidationTargets restricts registration to the given dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(o *registerOptions) {
		var targets []string
		for _, dialect := range dialects {
			dialect = strings.ToLower(strings.TrimSpace(dialect))
			if dialect != "" && !slices.Contains(targets, dialect) {
				targets = append(targets, dialect)
			}
		}
		if len(targets) > 0 {
			o.targets = targets
		}
	}
}

func WithSourceLabel(label string) Option {
	return func(o *registerOptions) {
		if label = strings.TrimSpace(label); label != "" {
			o.label = label
		}
	}
}

// WithRoot replaces the embedded filesystem. root must contain
// data/sql/migrations laid out like the embedded one.
func WithRoot(root fs.FS) Option {
	return func(o *registerOptions) {
		if root != nil {
			o.root = root
		}
	}
}

// Sources loads the postgres and sqlite migration sets from root, or from
// the embedded schema when root is nil. Every up migration must have a
// matching down migration.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = checkout.GetMigrationsFS()
	}
	dirs := []struct {
		dialect string
		dir     string
	}{
		{DialectPostgres, migrationsDir},
		{DialectSQLite, path.Join(migrationsDir, "sqlite")},
	}
	sources := make([]Source, 0, len(dirs))
	for _, d := range dirs {
		sub, err := fs.Sub(root, d.dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: open %s: %w", d.dir, err)
		}
		versions, err := pairedVersions(sub)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s: %w", d.dialect, err)
		}
		sources = append(sources, Source{Dialect: d.dialect, Dir: d.dir, FS: sub, Versions: versions})
	}
	return sources, nil
}

func pairedVersions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("%s has no down migration", version)
		}
		versions = append(versions, version)
	}
	slices.Sort(versions)
	return versions, nil
}

// Register calls registerFn once per selected dialect. Both dialects are
// selected unless WithValidationTargets narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	options := registerOptions{
		label:   sourceLabel,
		targets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	for _, target := range options.targets {
		if target != DialectPostgres && target != DialectSQLite {
			return nil, fmt.Errorf("migrations: unknown dialect %q", target)
		}
	}

	sources, err := Sources(options.root)
	if err != nil {
		return nil, err
	}
	registered := make([]Source, 0, len(options.targets))
	for _, source := range sources {
		if !slices.Contains(options.targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, options.label, source.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s from %s: %w", source.Dialect, source.Dir, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}
