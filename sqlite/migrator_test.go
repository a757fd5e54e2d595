package sqlite

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/influxdata/sitefeatures/sqlite/migrations"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestUp(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()

	// a new database should have a user_version of 0
	v, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 0, v)

	migrator := NewMigrator(store, zaptest.NewLogger(t))
	require.NoError(t, migrator.Up(ctx, migrations.AllUp))

	v, err = store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 2, v)

	tables, err := store.tableNames()
	require.NoError(t, err)
	require.Equal(t, []string{"feature_flags"}, tables)

	// running again is a no-op
	require.NoError(t, migrator.Up(ctx, migrations.AllUp))
	v, err = store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestUpSkipsAppliedScripts(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	ctx := context.Background()

	source := fstest.MapFS{
		"0001_first.sql":  {Data: []byte(`CREATE TABLE one (id TEXT NOT NULL PRIMARY KEY);`)},
		"0003_third.sql":  {Data: []byte(`CREATE TABLE three (id TEXT NOT NULL PRIMARY KEY);`)},
		"0002_second.sql": {Data: []byte(`CREATE TABLE two (id TEXT NOT NULL PRIMARY KEY);`)},
	}
	require.NoError(t, store.execTrans(ctx, `PRAGMA user_version = 1;`))

	require.NoError(t, NewMigrator(store, zaptest.NewLogger(t)).Up(ctx, source))

	tables, err := store.tableNames()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"two", "three"}, tables)

	v, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestUpBadScript(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	source := fstest.MapFS{
		"0001_broken.sql": {Data: []byte(`CREATE TABLE (`)},
	}
	err := NewMigrator(store, zaptest.NewLogger(t)).Up(context.Background(), source)
	require.Error(t, err)

	v, err := store.userVersion()
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestUpDuplicateVersions(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	source := fstest.MapFS{
		"0001_first.sql":   {Data: []byte(`CREATE TABLE one (id TEXT);`)},
		"0001_another.sql": {Data: []byte(`CREATE TABLE other (id TEXT);`)},
	}
	err := NewMigrator(store, zaptest.NewLogger(t)).Up(context.Background(), source)
	require.ErrorContains(t, err, "share version 1")

	tables, err := store.tableNames()
	require.NoError(t, err)
	require.Empty(t, tables)
}

func TestUpIgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	store := NewTestStore(t)
	source := fstest.MapFS{
		"0001_first.sql": {Data: []byte(`CREATE TABLE one (id TEXT);`)},
		"README.md":      {Data: []byte(`migrations run in order`)},
	}
	migrator := NewMigrator(store, zaptest.NewLogger(t))
	require.NoError(t, migrator.Up(context.Background(), source))

	v, err := migrator.Version()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestScriptVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		want     int
		wantErr  bool
	}{
		{
			"single digit number",
			"0001_some_file_name.sql",
			1,
			false,
		},
		{
			"larger number",
			"0921_another_file.sql",
			921,
			false,
		},
		{
			"bad name",
			"not_numbered_correctly.sql",
			0,
			true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := scriptVersion(tt.filename)
			require.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
