package sqlite

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrator brings the schema of a SqlStore up to date. The schema version
// is tracked in the database's user_version pragma.
type Migrator struct {
	store *SqlStore
	log   *zap.Logger
}

func NewMigrator(store *SqlStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

type migration struct {
	version int
	name    string
}

// Up runs, in version order, every script in source numbered above the
// current user_version. Each script runs in its own transaction together
// with the user_version bump, so a failed script leaves the schema at the
// last good version.
func (m *Migrator) Up(ctx context.Context, source fs.ReadDirFS) error {
	pending, err := m.pending(source)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	m.log.Info("Bringing up metadata migrations",
		zap.Int("migration_count", len(pending)),
		zap.Int("target_version", pending[len(pending)-1].version))

	for _, mig := range pending {
		script, err := fs.ReadFile(source, mig.name)
		if err != nil {
			return err
		}

		m.log.Debug("Executing metadata migration", zap.String("migration_name", mig.name))
		stmt := fmt.Sprintf("%s\nPRAGMA user_version = %d;", script, mig.version)
		if err := m.store.execTrans(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: %w", mig.name, err)
		}
	}
	return nil
}

// Version returns the schema version the database is at.
func (m *Migrator) Version() (int, error) {
	return m.store.userVersion()
}

func (m *Migrator) pending(source fs.ReadDirFS) ([]migration, error) {
	entries, err := source.ReadDir(".")
	if err != nil {
		return nil, err
	}

	current, err := m.store.userVersion()
	if err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(entries))
	var out []migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		v, err := scriptVersion(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[v]; ok {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, e.Name(), v)
		}
		seen[v] = e.Name()
		if v > current {
			out = append(out, migration{version: v, name: e.Name()})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// scriptVersion parses the leading number of a name like "0002_add_index.sql".
func scriptVersion(filename string) (int, error) {
	prefix, _, _ := strings.Cut(filename, "_")
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("migration %s: name must start with a version number", filename)
	}
	return v, nil
}
