// Package storage persists the crawl state: current articles, the discard set
// and archived articles. Each store is loaded and saved wholesale.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/newsai/internal/article"
)

var (
	// ErrDecode marks a persisted store that exists but cannot be decoded.
	ErrDecode = errors.New("decode store")
	// ErrDiscarded is returned when storing a URL that is in the discard set.
	ErrDiscarded = errors.New("url is discarded")
)

// Backend loads and saves the three logical stores.
type Backend interface {
	LoadArticles(ctx context.Context) ([]*article.Record, error)
	SaveArticles(ctx context.Context, records []*article.Record) error
	LoadDiscarded(ctx context.Context) ([]article.Discarded, error)
	SaveDiscarded(ctx context.Context, entries []article.Discarded) error
	LoadArchived(ctx context.Context) ([]*article.Record, error)
	SaveArchived(ctx context.Context, records []*article.Record) error
	Close() error
}

// State is the in-memory crawl state for one run.
//
// A URL is never in both the article map and the discard set.
type State struct {
	mu        sync.RWMutex
	backend   Backend
	log       *slog.Logger
	articles  map[string]*article.Record
	discarded map[string]article.Discarded
	archived  map[string]*article.Record
}

// Open loads every store from backend. A store that fails to load is logged
// and treated as empty so the run proceeds from an empty baseline.
func Open(ctx context.Context, backend Backend, log *slog.Logger) *State {
	s := &State{
		backend:   backend,
		log:       log,
		articles:  make(map[string]*article.Record),
		discarded: make(map[string]article.Discarded),
		archived:  make(map[string]*article.Record),
	}

	records, err := backend.LoadArticles(ctx)
	if err != nil {
		log.Error("load articles failed, starting empty", "error", err)
		records = nil
	}
	s.addRecords(s.articles, records, "articles")

	entries, err := backend.LoadDiscarded(ctx)
	if err != nil {
		log.Error("load discarded failed, starting empty", "error", err)
		entries = nil
	}
	for _, d := range entries {
		if d.URL == "" {
			log.Warn("skipping discarded entry without url")
			continue
		}
		s.discarded[d.URL] = d
	}

	archived, err := backend.LoadArchived(ctx)
	if err != nil {
		log.Error("load archived failed, starting empty", "error", err)
		archived = nil
	}
	s.addRecords(s.archived, archived, "archived")

	// Older stores may hold a URL twice; the discard set wins.
	for url := range s.discarded {
		delete(s.articles, url)
	}

	log.Info("state loaded",
		"articles", len(s.articles),
		"discarded", len(s.discarded),
		"archived", len(s.archived))
	return s
}

// addRecords indexes records by URL. Null entries and entries without a URL
// are skipped.
func (s *State) addRecords(dst map[string]*article.Record, records []*article.Record, store string) {
	skipped := 0
	for _, r := range records {
		if r == nil || r.URL == "" {
			skipped++
			continue
		}
		dst[r.URL] = r
	}
	if skipped > 0 {
		s.log.Warn("skipped invalid records", "store", store, "count", skipped)
	}
}

// Article returns the stored record for url.
func (s *State) Article(url string) (*article.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.articles[url]
	return r, ok
}

// IsDiscarded reports whether url is in the discard set.
func (s *State) IsDiscarded(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.discarded[url]
	return ok
}

// Store adds or replaces a record.
func (s *State) Store(r *article.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discarded[r.URL]; ok {
		return fmt.Errorf("store %s: %w", r.URL, ErrDiscarded)
	}
	s.articles[r.URL] = r
	return nil
}

// Discard moves url into the discard set, dropping any stored record.
func (s *State) Discard(url string, reason article.DiscardReason, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, url)
	if _, ok := s.discarded[url]; ok {
		return
	}
	s.discarded[url] = article.Discarded{URL: url, Reason: reason, At: at}
}

// Articles returns the stored records, newest first.
func (s *State) Articles() []*article.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.articles)
}

// Archived returns the archived records, newest first.
func (s *State) Archived() []*article.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.archived)
}

// Discarded returns the discard set ordered by URL.
func (s *State) Discarded() []article.Discarded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedDiscarded(s.discarded)
}

// Counts returns the sizes of the three stores.
func (s *State) Counts() (articles, discarded, archived int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles), len(s.discarded), len(s.archived)
}

// ArchiveStale moves every stored article older than maxAge into the archive
// and the discard set. It returns the number of records moved.
func (s *State) ArchiveStale(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for url, r := range s.articles {
		if !r.IsStale(now, maxAge) {
			continue
		}
		r.Outdated = true
		r.LastChecked = now
		s.archived[url] = r
		delete(s.articles, url)
		s.discarded[url] = article.Discarded{URL: url, Reason: article.ReasonArchived, At: now}
		moved++
	}
	if moved > 0 {
		s.log.Info("archived stale articles", "count", moved)
	}
	return moved
}

// SaveArticles persists the article store.
func (s *State) SaveArticles(ctx context.Context) error {
	if err := s.backend.SaveArticles(ctx, s.Articles()); err != nil {
		return fmt.Errorf("save articles: %w", err)
	}
	return nil
}

// SaveDiscarded persists the discard set.
func (s *State) SaveDiscarded(ctx context.Context) error {
	if err := s.backend.SaveDiscarded(ctx, s.Discarded()); err != nil {
		return fmt.Errorf("save discarded: %w", err)
	}
	return nil
}

// Save persists all three stores.
func (s *State) Save(ctx context.Context) error {
	if err := s.SaveArticles(ctx); err != nil {
		return err
	}
	if err := s.SaveDiscarded(ctx); err != nil {
		return err
	}
	if err := s.backend.SaveArchived(ctx, s.Archived()); err != nil {
		return fmt.Errorf("save archived: %w", err)
	}
	return nil
}

func sortedRecords(m map[string]*article.Record) []*article.Record {
	out := make([]*article.Record, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Published.Equal(out[j].Published) {
			return out[i].Published.After(out[j].Published)
		}
		return out[i].URL < out[j].URL
	})
	return out
}

func sortedDiscarded(m map[string]article.Discarded) []article.Discarded {
	out := make([]article.Discarded, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
