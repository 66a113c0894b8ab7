package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsai/internal/article"
	"github.com/deusflow/newsai/internal/config"
	"github.com/deusflow/newsai/internal/logger"
)

var now = time.Date(2024, 5, 10, 12, 30, 15, 123000000, time.UTC)

func sample(url string, age time.Duration) *article.Record {
	r := &article.Record{
		URL:           url,
		Source:        "bbc",
		Categories:    []string{"world"},
		Published:     now.Add(-age),
		Modified:      now.Add(-age),
		Headline:      "headline " + url,
		Body:          "some body text",
		BodyWordCount: 3,
		Scraped:       true,
		LastChecked:   now,
	}
	return r
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	file, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	db, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Backend{"file": file, "sqlite": db}
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := Open(ctx, b, logger.Discard())
			r := sample("https://example.com/a", time.Hour)
			r.Summary = &article.Summary{Text: "short", WordCount: 1, RelativeSize: 33}
			r.SetCluster(2)
			require.NoError(t, s.Store(r))
			s.Discard("https://example.com/old", article.ReasonStale, now)
			require.NoError(t, s.Save(ctx))

			loaded := Open(ctx, b, logger.Discard())
			got, ok := loaded.Article(r.URL)
			require.True(t, ok)
			assert.True(t, got.Published.Equal(r.Published))
			assert.True(t, got.LastChecked.Equal(now))
			assert.Equal(t, r.Headline, got.Headline)
			assert.Equal(t, r.Categories, got.Categories)
			assert.Equal(t, "short", got.Summary.Text)
			assert.Equal(t, 2, got.Cluster())

			discarded := loaded.Discarded()
			require.Len(t, discarded, 1)
			assert.Equal(t, article.ReasonStale, discarded[0].Reason)
			assert.True(t, discarded[0].At.Equal(now))
		})
	}
}

func TestStoreAndDiscardAreExclusive(t *testing.T) {
	file, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := Open(context.Background(), file, logger.Discard())

	r := sample("u", time.Hour)
	require.NoError(t, s.Store(r))
	_, stored := s.Article("u")
	assert.True(t, stored)

	s.Discard("u", article.ReasonShortBody, now)
	_, stored = s.Article("u")
	assert.False(t, stored)
	assert.True(t, s.IsDiscarded("u"))

	err = s.Store(r)
	assert.ErrorIs(t, err, ErrDiscarded)

	// The first reason is kept.
	s.Discard("u", article.ReasonStale, now)
	assert.Equal(t, article.ReasonShortBody, s.Discarded()[0].Reason)
}

func TestOpenDiscardWinsOverArticles(t *testing.T) {
	ctx := context.Background()
	file, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, file.SaveArticles(ctx, []*article.Record{sample("u", time.Hour)}))
	require.NoError(t, file.SaveDiscarded(ctx, []article.Discarded{{URL: "u", Reason: article.ReasonStale, At: now}}))

	s := Open(ctx, file, logger.Discard())
	a, d, _ := s.Counts()
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, d)
}

func TestOpenUndecodableStoreStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, articlesFile), []byte("{not json"), 0o644))
	file, err := NewFileBackend(dir)
	require.NoError(t, err)

	_, err = file.LoadArticles(context.Background())
	assert.ErrorIs(t, err, ErrDecode)

	s := Open(context.Background(), file, logger.Discard())
	a, d, ar := s.Counts()
	assert.Zero(t, a+d+ar)
}

func TestOpenTypeMismatchedStoreStartsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bad := `[{"url":"a","body_word_count":"oops"},{"url":"b"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, articlesFile), []byte(bad), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, archivedFile), []byte(bad), 0o644))
	file, err := NewFileBackend(dir)
	require.NoError(t, err)

	records, err := file.LoadArticles(ctx)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, records)

	s := Open(ctx, file, logger.Discard())
	a, _, ar := s.Counts()
	assert.Zero(t, a)
	assert.Zero(t, ar)
}

// partialBackend returns data together with a load error.
type partialBackend struct {
	*FileBackend
}

func (partialBackend) LoadArticles(context.Context) ([]*article.Record, error) {
	return []*article.Record{sample("a", time.Hour)}, ErrDecode
}

func (partialBackend) LoadDiscarded(context.Context) ([]article.Discarded, error) {
	return []article.Discarded{{URL: "d", Reason: article.ReasonStale, At: now}}, ErrDecode
}

func (partialBackend) LoadArchived(context.Context) ([]*article.Record, error) {
	return []*article.Record{sample("old", 48*time.Hour)}, ErrDecode
}

func TestOpenIgnoresDataReturnedWithError(t *testing.T) {
	s := Open(context.Background(), partialBackend{}, logger.Discard())
	a, d, ar := s.Counts()
	assert.Equal(t, []int{0, 0, 0}, []int{a, d, ar})
}

func TestOpenSkipsNullAndURLlessEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, articlesFile), []byte(`[null, {"url":""}, {"url":"a"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, archivedFile), []byte(`[null]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, discardedFile), []byte(`[{"url":"","reason":"stale"}]`), 0o644))
	file, err := NewFileBackend(dir)
	require.NoError(t, err)

	var s *State
	require.NotPanics(t, func() { s = Open(ctx, file, logger.Discard()) })
	a, d, ar := s.Counts()
	assert.Equal(t, []int{1, 0, 0}, []int{a, d, ar})
	_, ok := s.Article("a")
	assert.True(t, ok)
}

func TestFileBackendMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, discardedFile), nil, 0o644))
	file, err := NewFileBackend(dir)
	require.NoError(t, err)

	records, err := file.LoadArticles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	entries, err := file.LoadDiscarded(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileBackendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, file.SaveArticles(context.Background(), []*article.Record{sample("u", 0)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, articlesFile, entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, articlesFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"published": "2024-05-10T12:30:15.123Z"`)
}

func TestArchiveStale(t *testing.T) {
	file, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := Open(context.Background(), file, logger.Discard())

	require.NoError(t, s.Store(sample("fresh", time.Hour)))
	require.NoError(t, s.Store(sample("old", 30*time.Hour)))

	moved := s.ArchiveStale(now, 24*time.Hour)
	assert.Equal(t, 1, moved)

	a, d, ar := s.Counts()
	assert.Equal(t, []int{1, 1, 1}, []int{a, d, ar})

	archived := s.Archived()
	require.Len(t, archived, 1)
	assert.Equal(t, "old", archived[0].URL)
	assert.True(t, archived[0].Outdated)
	assert.Equal(t, article.ReasonArchived, s.Discarded()[0].Reason)
}

func TestArticlesNewestFirst(t *testing.T) {
	file, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := Open(context.Background(), file, logger.Discard())

	require.NoError(t, s.Store(sample("b", 2*time.Hour)))
	require.NoError(t, s.Store(sample("a", 3*time.Hour)))
	require.NoError(t, s.Store(sample("c", time.Hour)))

	var urls []string
	for _, r := range s.Articles() {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"c", "b", "a"}, urls)
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := NewBackend(config.StorageConfig{Backend: "file", DataDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	b, err = NewBackend(config.StorageConfig{Backend: "sqlite", DataDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, b.Close())
	assert.FileExists(t, filepath.Join(dir, "newsai.db"))

	_, err = NewBackend(config.StorageConfig{Backend: "redis", DataDir: dir})
	assert.Error(t, err)
}
