package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shapelab/internal/config"
)

type opener func(t *testing.T, collection string) Store

func backends(t *testing.T) map[string]opener {
	dir := t.TempDir()
	open := func(driver string) opener {
		return func(t *testing.T, collection string) Store {
			s, err := NewSQLiteStore(driver, filepath.Join(dir, driver+".db"), collection)
			if err != nil && driver == config.DriverCgo {
				t.Skipf("cgo sqlite unavailable: %v", err)
			}
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}
	}
	return map[string]opener{
		"file": func(t *testing.T, collection string) Store {
			return NewFileStore(filepath.Join(dir, collection))
		},
		"modernc": open(config.DriverModernc),
		"cgo":     open(config.DriverCgo),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t, CollectionSavedModels)

			names, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, names)

			require.NoError(t, s.Write(ctx, "bike", []byte(`{"v":1}`)))
			require.NoError(t, s.Write(ctx, "adult.json", []byte(`{"v":2}`)))
			require.NoError(t, s.Write(ctx, "bike", []byte(`{"v":3}`)))

			names, err = s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"adult", "bike"}, names)

			data, err := s.Read(ctx, "bike.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":3}`, string(data))

			_, err = s.Read(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, s.Write(ctx, "", []byte(`{}`)), ErrMissingName)
		})
	}
}

func TestStore_CollectionsAreSeparate(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			models := open(t, CollectionModels)
			saved := open(t, CollectionSavedModels)

			require.NoError(t, models.Write(ctx, "bike", []byte(`{}`)))
			names, err := saved.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"bike", "bike", false},
		{"bike.json", "bike", false},
		{"../../etc/passwd", "passwd", false},
		{`..\secret.json`, "secret", false},
		{"  spaced ", "spaced", false},
		{"", "", true},
		{"..", "", true},
		{"/", "", true},
	}
	for _, tt := range tests {
		got, err := SanitizeName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMissingName, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFileStore_PathTraversal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileStore(filepath.Join(root, "saved"))

	require.NoError(t, s.Write(ctx, "../escape", []byte(`{}`)))
	_, err := os.Stat(filepath.Join(root, "escape.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "saved", "escape.json"))
	assert.NoError(t, err)
}

func TestFileStore_IgnoresOtherFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".bike.json.123.tmp"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bike.json"), []byte(`{}`), 0644))

	names, err := NewFileStore(dir).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bike"}, names)
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	payloads := []string{`{"w":1}`, `{"w":2}`, `{"w":3}`, `{"w":4}`}
	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Write(ctx, "same", []byte(p)))
		}()
	}
	wg.Wait()

	data, err := s.Read(ctx, "same")
	require.NoError(t, err)
	assert.Contains(t, payloads, string(data))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StoreConfig{
		Backend:        config.BackendFile,
		ModelsDir:      filepath.Join(dir, "models"),
		SavedModelsDir: filepath.Join(dir, "saved"),
	}
	s, err := Open(cfg, CollectionSavedModels)
	require.NoError(t, err)
	assert.Equal(t, cfg.SavedModelsDir, s.(*FileStore).Dir())

	cfg.Backend = config.BackendSQLite
	cfg.DatabasePath = filepath.Join(dir, "db", "shapelab.db")
	s, err = Open(cfg, CollectionModels)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)

	cfg.Backend = "s3"
	_, err = Open(cfg, CollectionModels)
	assert.Error(t, err)
}

func TestSQLiteStore_ConcurrentCollections(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{config.DriverModernc, config.DriverCgo} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "shared.db")
			models, err := NewSQLiteStore(driver, path, CollectionModels)
			if err != nil && driver == config.DriverCgo {
				t.Skipf("cgo sqlite unavailable: %v", err)
			}
			require.NoError(t, err)
			defer models.Close()
			saved, err := NewSQLiteStore(driver, path, CollectionSavedModels)
			require.NoError(t, err)
			defer saved.Close()

			const writes = 25
			var wg sync.WaitGroup
			for _, s := range []Store{models, saved} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range writes {
						assert.NoError(t, s.Write(ctx, fmt.Sprintf("m%02d", i), []byte(`{}`)))
					}
				}()
			}
			wg.Wait()

			for _, s := range []Store{models, saved} {
				names, err := s.List(ctx)
				require.NoError(t, err)
				assert.Len(t, names, writes)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_journal_mode=WAL&_busy_timeout=5000", dsn(config.DriverCgo, "a.db"))
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn(config.DriverModernc, "a.db"))
	assert.Equal(t, ":memory:?_pragma=busy_timeout(5000)", dsn(config.DriverModernc, ":memory:"))
}
