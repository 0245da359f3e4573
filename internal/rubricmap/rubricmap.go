// Package rubricmap builds and caches the assignment-wide map from
// question IDs to their rubric items. Fetching the map walks the host
// platform's question hierarchy one HTTP call per question, so results
// are cached with a freshness window and fetches run in bounded batches.
package rubricmap

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"rubricon/internal/logging"
	"rubricon/internal/store"
)

// Item is one rubric item as the platform reports it.
type Item struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Points      float64 `json:"points"`
}

// Question is one question with its rubric items. ParentID is nil for
// top-level questions and set for sub-questions in the hierarchy.
type Question struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ParentID    *string `json:"parentId"`
	RubricStyle string  `json:"rubricStyle,omitempty"`
	Items       []Item  `json:"items"`
}

// Map indexes questions by question ID.
type Map map[string]Question

// QuestionRef identifies a question before its items are fetched.
type QuestionRef struct {
	ID          string
	Name        string
	ParentID    *string
	RubricStyle string
}

// ErrNotFound reports that the platform has no rubric for a question.
var ErrNotFound = errors.New("rubricmap: not found")

// Fetcher retrieves the question hierarchy from the host platform.
type Fetcher interface {
	ListQuestions(ctx context.Context, courseID, assignmentID string) ([]QuestionRef, error)
	QuestionItems(ctx context.Context, courseID, assignmentID, questionID string) ([]Item, error)
}

// cacheEntry is the stored form of a fetched map. UpdatedAt is epoch
// milliseconds; freshness is judged against it, not against any
// store-level expiry.
type cacheEntry struct {
	Data      Map   `json:"data"`
	UpdatedAt int64 `json:"updatedAt"`
}

// CacheKey returns the store key for an assignment's rubric map.
func CacheKey(assignmentID string) string {
	return "rubric:" + assignmentID
}

// Service serves rubric maps, consulting the cache before the platform.
type Service struct {
	store     store.Store
	fetch     Fetcher
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func New(st store.Store, fetch Fetcher, ttl time.Duration, batchSize int) *Service {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Service{
		store:     st,
		fetch:     fetch,
		ttl:       ttl,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Get returns the rubric map for an assignment. A cached entry younger
// than the freshness window is served as-is; anything else triggers a
// full refetch. Cache failures never fail the call, only the platform
// fetch can.
func (s *Service) Get(ctx context.Context, courseID, assignmentID string) (Map, error) {
	key := CacheKey(assignmentID)

	if raw, found, err := s.store.Get(ctx, key); err != nil {
		logging.CacheWarn("cache read failed for %s: %v", key, err)
	} else if found {
		var entry cacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			logging.CacheWarn("discarding undecodable cache entry for %s: %v", key, err)
		} else if age := s.now().Sub(time.UnixMilli(entry.UpdatedAt)); age <= s.ttl {
			logging.Cache("hit for %s (age %s)", key, age.Round(time.Second))
			return entry.Data, nil
		} else {
			logging.Cache("stale entry for %s (age %s), refetching", key, age.Round(time.Second))
		}
	} else {
		logging.Cache("miss for %s", key)
	}

	m, err := s.fetchAll(ctx, courseID, assignmentID)
	if err != nil {
		return nil, err
	}

	entry := cacheEntry{Data: m, UpdatedAt: s.now().UnixMilli()}
	if raw, err := json.Marshal(entry); err != nil {
		logging.CacheWarn("failed to encode cache entry for %s: %v", key, err)
	} else if err := s.store.Set(ctx, key, raw); err != nil {
		logging.CacheWarn("cache write failed for %s: %v", key, err)
	}
	return m, nil
}

// Invalidate drops the cached map for an assignment.
func (s *Service) Invalidate(ctx context.Context, assignmentID string) error {
	return s.store.Delete(ctx, CacheKey(assignmentID))
}

// fetchAll lists the assignment's questions and fetches their rubric
// items in sequential batches, with the calls inside each batch running
// concurrently. A question whose items cannot be fetched degrades to an
// empty item list so one gap does not lose the whole map.
func (s *Service) fetchAll(ctx context.Context, courseID, assignmentID string) (Map, error) {
	refs, err := s.fetch.ListQuestions(ctx, courseID, assignmentID)
	if err != nil {
		return nil, err
	}
	logging.Fetch("fetching rubric items for %d questions in batches of %d", len(refs), s.batchSize)

	results := make([][]Item, len(refs))
	for start := 0; start < len(refs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(refs) {
			end = len(refs)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				items, err := s.fetch.QuestionItems(gctx, courseID, assignmentID, refs[i].ID)
				switch {
				case err == nil:
					results[i] = items
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					return err
				case errors.Is(err, ErrNotFound):
					logging.FetchWarn("no rubric for question %s, using empty items", refs[i].ID)
					results[i] = []Item{}
				default:
					logging.FetchWarn("fetch failed for question %s, using empty items: %v", refs[i].ID, err)
					results[i] = []Item{}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	m := make(Map, len(refs))
	for i, ref := range refs {
		m[ref.ID] = Question{
			ID:          ref.ID,
			Name:        ref.Name,
			ParentID:    ref.ParentID,
			RubricStyle: ref.RubricStyle,
			Items:       results[i],
		}
	}
	return m, nil
}

// ReverseIndex maps every rubric item ID back to its question ID so a
// decision arriving from the grading stream can be located on the page.
func ReverseIndex(m Map) map[string]string {
	idx := make(map[string]string)
	for qid, q := range m {
		for _, item := range q.Items {
			idx[item.ID] = qid
		}
	}
	return idx
}
