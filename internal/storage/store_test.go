package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func removeFile(path string) error { return os.Remove(path) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	database, err := dbx.NewDatabase(dbx.Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	return New(dbx.NewFileDB(database.DB()), Config{
		Root:                filepath.Join(dir, "storage"),
		DefaultQuotaBytes:   10 * 1024 * 1024,
		MaxFilesPerUser:     1000,
		MaxFilesPerCategory: 200,
	})
}

func TestSaveFile_RejectsBadExtension(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveFile(context.Background(), "u1", models.CategoryMF4, "evil.exe", bytes.NewReader([]byte("x")), 1, "", nil)
	assert.Error(t, err)
}

func TestSaveFile_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello world")
	f, err := s.SaveFile(context.Background(), "u1", models.CategoryDBC, "mine.dbc", bytes.NewReader(data), int64(len(data)), "desc", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), f.SizeBytes)

	got, err := s.GetFile(context.Background(), f.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "mine.dbc", got.OriginalName)

	path, _, err := s.GetPath(context.Background(), f.ID, "u1")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSaveFile_QuotaExceeded(t *testing.T) {
	s := newTestStore(t) // quota = 10MiB
	big := bytes.Repeat([]byte("a"), 11*1024*1024)
	_, err := s.SaveFile(context.Background(), "u1", models.CategoryMF4, "a.mf4", bytes.NewReader(big), int64(len(big)), "", nil)
	assert.Error(t, err)
}

func TestSaveFile_ConcurrentUploadsRespectQuota(t *testing.T) {
	s := newTestStore(t)
	s.defaultQuota = 10 * 1024 * 1024
	chunk := bytes.Repeat([]byte("a"), 6*1024*1024)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.SaveFile(context.Background(), "u1", models.CategoryDBC, "x.dbc", bytes.NewReader(chunk), int64(len(chunk)), "", nil)
			results[i] = err
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, err := range results {
		if err == nil {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount)

	info, err := s.Info(context.Background(), "u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, info.UsedBytes, info.QuotaBytes)
}

func TestDelete_DefaultFileIsImmutable(t *testing.T) {
	s := newTestStore(t)
	data := []byte("abc")
	f, err := s.SaveFile(context.Background(), "", models.CategoryDBC, "default.dbc", bytes.NewReader(data), int64(len(data)), "", nil)
	require.NoError(t, err)

	err = s.Delete(context.Background(), f.ID, "someuser")
	assert.Error(t, err)

	got, err := s.GetFile(context.Background(), f.ID, "someuser")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
}

func TestPathTraversal_Rejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.resolvePath("u1", models.CategoryDBC, "../../etc/passwd")
	assert.Error(t, err)
}

func TestReconcileOrphans_RemovesMissingFiles(t *testing.T) {
	s := newTestStore(t)
	data := []byte("abc")
	f, err := s.SaveFile(context.Background(), "u1", models.CategoryDBC, "x.dbc", bytes.NewReader(data), int64(len(data)), "", nil)
	require.NoError(t, err)

	path, _, err := s.GetPath(context.Background(), f.ID, "u1")
	require.NoError(t, err)
	require.NoError(t, removeFile(path))

	removed, err := s.ReconcileOrphans(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetFile(context.Background(), f.ID, "u1")
	assert.Error(t, err)
}

func TestSaveJSON_RejectsDeepNesting(t *testing.T) {
	s := newTestStore(t)

	deep := map[string]any{}
	cur := deep
	for i := 0; i < 12; i++ {
		next := map[string]any{}
		cur["nested"] = next
		cur = next
	}
	_, err := s.SaveJSON(context.Background(), "u1", models.CategoryAnalyses, "deep.json", deep, "")
	assert.Error(t, err)

	shallow := map[string]any{"a": map[string]any{"b": []any{1, 2, 3}}}
	f, err := s.SaveJSON(context.Background(), "u1", models.CategoryAnalyses, "shallow.json", shallow, "")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, s.ReadJSON(context.Background(), f.ID, "u1", &got))
	assert.Equal(t, "b", func() string {
		for k := range got["a"].(map[string]any) {
			return k
		}
		return ""
	}())
}

func TestJSONDepth(t *testing.T) {
	assert.Equal(t, 1, jsonDepth([]byte(`{"a":1}`)))
	assert.Equal(t, 3, jsonDepth([]byte(`{"a":[{"b":2}]}`)))
	assert.Equal(t, 1, jsonDepth([]byte(`{"a":"{[["}`)))
}
