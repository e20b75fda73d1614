package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/faces-api/internal/repository"
	"github.com/example/faces-api/internal/validation"
)

type stubFinder struct {
	records []*repository.PhotoRecord
	err     error
	calls   int
	boxes   []validation.BoundingBox
}

func (s *stubFinder) FindInBox(ctx context.Context, box validation.BoundingBox) ([]*repository.PhotoRecord, error) {
	s.calls++
	s.boxes = append(s.boxes, box)
	if s.err != nil {
		return nil, s.err
	}
	var matched []*repository.PhotoRecord
	for _, r := range s.records {
		if box.Contains(r.X, r.Y) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

type stubCache struct {
	getErrs []error
	setErrs []error
	incrErr error
	getKeys []string
	setKeys []string
	stored  map[string]string
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.stored == nil {
		s.stored = make(map[string]string)
	}
	s.stored[key] = value.(string)
	return nil
}

// Get pops an injected error first; a nil entry falls through to the stored value.
func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	s.getKeys = append(s.getKeys, key)
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if value, ok := s.stored[key]; ok {
		return value, nil
	}
	return "", redis.Nil
}

func (s *stubCache) Incr(ctx context.Context, key string) (int64, error) {
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	if s.stored == nil {
		s.stored = make(map[string]string)
	}
	n, _ := strconv.ParseInt(s.stored[key], 10, 64)
	n++
	s.stored[key] = strconv.FormatInt(n, 10)
	return n, nil
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

func sampleRecords() []*repository.PhotoRecord {
	return []*repository.PhotoRecord{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 50, Y: 50},
		{ID: "c", X: 25.5, Y: 49.9},
		{ID: "d", X: 51, Y: 10},
		{ID: "e", X: 10, Y: -1},
	}
}

func TestFindInBoxReturnsOnlyInclusiveMatches(t *testing.T) {
	finder := &stubFinder{records: sampleRecords()}
	uc := NewQueryUseCase(finder, nil, 0, zap.NewNop())

	records, err := uc.FindInBox(context.Background(), validation.BoundingBox{StartX: 0, EndX: 50, StartY: 0, EndY: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[string]bool{}
	for _, r := range records {
		got[r.ID] = true
	}
	if len(records) != 3 || !got["a"] || !got["b"] || !got["c"] {
		t.Fatalf("unexpected matches: %v", got)
	}
}

func TestFindInBoxNeverReturnsNil(t *testing.T) {
	uc := NewQueryUseCase(&stubFinder{}, nil, 0, zap.NewNop())

	records, err := uc.FindInBox(context.Background(), validation.BoundingBox{StartX: 500, EndX: 600, StartY: 0, EndY: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
}

func TestFindInBoxCachesMisses(t *testing.T) {
	cache := &stubCache{}
	finder := &stubFinder{records: sampleRecords()}
	uc := NewQueryUseCase(finder, cache, time.Minute, zap.NewNop())
	box := validation.BoundingBox{StartX: 0, EndX: 50, StartY: 0, EndY: 50}

	if _, err := uc.FindInBox(context.Background(), box); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.calls != 1 {
		t.Fatalf("expected store query on miss, got %d calls", finder.calls)
	}
	if len(cache.getKeys) != 2 {
		t.Fatalf("expected one generation read and one box read, got %v", cache.getKeys)
	}
	if cache.stored["photos:box:0:0:50:0:50"] == "" {
		t.Fatalf("expected result to be cached under generation 0, got keys %v", cache.setKeys)
	}
}

func TestFindInBoxServesCacheHits(t *testing.T) {
	cache := &stubCache{stored: map[string]string{
		"photos:box:0:0:5:0:5": `[{"_id":"cached","x":1,"y":2}]`,
	}}
	finder := &stubFinder{}
	uc := NewQueryUseCase(finder, cache, time.Minute, zap.NewNop())

	records, err := uc.FindInBox(context.Background(), validation.BoundingBox{EndX: 5, EndY: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.calls != 0 {
		t.Fatal("store must not be queried on a cache hit")
	}
	if len(records) != 1 || records[0].ID != "cached" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestFindInBoxIgnoresEntriesFromEarlierGenerations(t *testing.T) {
	cache := &stubCache{stored: map[string]string{
		boxGenerationKey:       "4",
		"photos:box:3:0:5:0:5": `[]`,
	}}
	finder := &stubFinder{records: []*repository.PhotoRecord{{ID: "new", X: 1, Y: 1}}}
	uc := NewQueryUseCase(finder, cache, time.Minute, zap.NewNop())

	records, err := uc.FindInBox(context.Background(), validation.BoundingBox{EndX: 5, EndY: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.calls != 1 || len(records) != 1 {
		t.Fatalf("expected a fresh store read, got %d calls and %d records", finder.calls, len(records))
	}
	if cache.stored["photos:box:4:0:5:0:5"] == "" {
		t.Fatalf("expected result cached under generation 4, got keys %v", cache.setKeys)
	}
}

func TestFindInBoxToleratesCacheFailures(t *testing.T) {
	cache := &stubCache{
		getErrs: []error{nil, errors.New("NOAUTH")},
		setErrs: []error{transientRedisError{}, errors.New("READONLY")},
	}
	finder := &stubFinder{records: sampleRecords()}
	uc := NewQueryUseCase(finder, cache, time.Minute, zap.NewNop())
	uc.retry.InitialBackoff = time.Millisecond
	uc.retry.MaxBackoff = 2 * time.Millisecond

	records, err := uc.FindInBox(context.Background(), validation.BoundingBox{StartX: 0, EndX: 50, StartY: 0, EndY: 50})
	if err != nil {
		t.Fatalf("cache errors must not fail the query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if len(cache.setKeys) != 2 {
		t.Fatalf("expected transient set error to be retried once, got %d sets", len(cache.setKeys))
	}
}

func TestFindInBoxBypassesCacheWithoutGeneration(t *testing.T) {
	cache := &stubCache{getErrs: []error{errors.New("NOAUTH")}}
	finder := &stubFinder{records: sampleRecords()}
	uc := NewQueryUseCase(finder, cache, time.Minute, zap.NewNop())

	records, err := uc.FindInBox(context.Background(), validation.BoundingBox{StartX: 0, EndX: 50, StartY: 0, EndY: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 || finder.calls != 1 {
		t.Fatalf("expected store results, got %d records from %d calls", len(records), finder.calls)
	}
	if len(cache.getKeys) != 1 || len(cache.setKeys) != 0 {
		t.Fatalf("cache must be skipped, got gets %v sets %v", cache.getKeys, cache.setKeys)
	}
}

// photoIndex lets a submission write into the records a stubFinder serves.
type photoIndex struct {
	*stubFinder
}

func (p photoIndex) Insert(ctx context.Context, record *repository.PhotoRecord) error {
	p.records = append(p.records, record)
	return nil
}

func TestStoredPhotoIsVisibleToCachedQueries(t *testing.T) {
	cache := &stubCache{}
	finder := &stubFinder{}
	query := NewQueryUseCase(finder, cache, time.Minute, zap.NewNop())

	f := newFixture(t, 10)
	f.uc.repo = photoIndex{finder}
	f.uc.WithQueryCache(cache)

	box := validation.BoundingBox{StartX: 0, EndX: 50, StartY: 0, EndY: 50}
	before, err := query.FindInBox(context.Background(), box)
	if err != nil || len(before) != 0 {
		t.Fatalf("expected empty result before submission, got %d (%v)", len(before), err)
	}

	if _, err := f.uc.Submit(context.Background(), multipartSubmission(t, true, map[string]string{"x": "10", "y": "10"})); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	after, err := query.FindInBox(context.Background(), box)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(after) != 1 || after[0].X != 10 {
		t.Fatalf("expected the new photo after submission, got %+v", after)
	}

	again, err := query.FindInBox(context.Background(), box)
	if err != nil || len(again) != 1 {
		t.Fatalf("expected cached result with the new photo, got %d (%v)", len(again), err)
	}
	if finder.calls != 2 {
		t.Fatalf("expected the third query to hit the cache, got %d store calls", finder.calls)
	}
}

func TestSubmitSucceedsWhenInvalidationFails(t *testing.T) {
	f := newFixture(t, 10)
	f.uc.retry.InitialBackoff = time.Millisecond
	f.uc.retry.MaxBackoff = 2 * time.Millisecond
	f.uc.WithQueryCache(&stubCache{incrErr: errors.New("READONLY")})

	if _, err := f.uc.Submit(context.Background(), multipartSubmission(t, true, map[string]string{"x": "1", "y": "2"})); err != nil {
		t.Fatalf("cache invalidation must not fail a stored submission: %v", err)
	}
	if len(f.writer.saved) != 1 {
		t.Fatalf("expected one stored record, got %d", len(f.writer.saved))
	}
}

func TestFindInBoxPropagatesStoreErrors(t *testing.T) {
	base := errors.New("server selection timeout")
	uc := NewQueryUseCase(&stubFinder{err: base}, nil, 0, zap.NewNop())

	if _, err := uc.FindInBox(context.Background(), validation.BoundingBox{}); !errors.Is(err, base) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
