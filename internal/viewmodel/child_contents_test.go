package viewmodel

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/lectern/internal/datacache"
	"github.com/mmcdole/lectern/internal/dispatch"
	"github.com/mmcdole/lectern/internal/domain"
	"github.com/mmcdole/lectern/internal/store"
)

// === Fakes ===

type fakeSub struct {
	parentID  domain.ContentID
	observer  domain.ChildContentsObserver
	cancelled bool
}

func (s *fakeSub) Cancel() { s.cancelled = true }

// fakeRepo never emits on its own; tests push emissions explicitly.
type fakeRepo struct {
	subs     []*fakeSub
	applied  []domain.CacheUpdate
	applyErr error
}

func (r *fakeRepo) ObserveChildContents(parentID domain.ContentID, observer domain.ChildContentsObserver) domain.Subscription {
	sub := &fakeSub{parentID: parentID, observer: observer}
	r.subs = append(r.subs, sub)
	return sub
}

func (r *fakeRepo) Apply(update domain.CacheUpdate) error {
	r.applied = append(r.applied, update)
	return r.applyErr
}

// emit delivers to the newest live subscription
func (r *fakeRepo) emit(t *testing.T, state domain.ChildContentsState, err error) {
	t.Helper()
	for i := len(r.subs) - 1; i >= 0; i-- {
		if !r.subs[i].cancelled {
			r.subs[i].observer(state, err)
			return
		}
	}
	t.Fatal("no live subscription")
}

type fakeService struct {
	calls   []domain.ContentID
	pending []domain.ContentDetailsCompletion
}

func (s *fakeService) ContentDetails(id domain.ContentID, completion domain.ContentDetailsCompletion) {
	s.calls = append(s.calls, id)
	s.pending = append(s.pending, completion)
}

func (s *fakeService) complete(i int, details domain.ContentDetails, update domain.CacheUpdate, err error) {
	s.pending[i](details, update, err)
}

func missErr(id domain.ContentID) error {
	return &domain.CacheError{Kind: domain.CacheMiss, ContentID: id}
}

func newTestVM(id domain.ContentID) (*ChildContents, *fakeRepo, *fakeService, *bytes.Buffer) {
	repo := &fakeRepo{}
	svc := &fakeService{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	vm := NewChildContents(id, repo, svc, dispatch.Inline{}, logger)
	return vm, repo, svc, &logs
}

// failureEntries returns the structured failure log lines
func failureEntries(t *testing.T, logs *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "failure" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// === Transitions ===

func TestNewChildContentsStartsInitial(t *testing.T) {
	vm, repo, svc, _ := newTestVM(1)

	assert.Equal(t, domain.LoadStateInitial, vm.State())
	assert.Empty(t, repo.subs)
	assert.Empty(t, svc.calls)
}

func TestCacheHitHasData(t *testing.T) {
	vm, repo, svc, _ := newTestVM(7)
	vm.Start()
	require.Len(t, repo.subs, 1)
	assert.Equal(t, domain.ContentID(7), repo.subs[0].parentID)

	a := domain.Content{ID: 100, Name: "a", GroupID: 1, Ordinal: 1}
	b := domain.Content{ID: 101, Name: "b", GroupID: 1, Ordinal: 2}
	g1 := domain.Group{ID: 1, ContentID: 7, Name: "g1"}
	repo.emit(t, domain.ChildContentsState{Contents: []domain.Content{a, b}, Groups: []domain.Group{g1}}, nil)

	assert.Equal(t, domain.LoadStateHasData, vm.State())
	assert.Equal(t, []domain.Content{a, b}, vm.Contents())
	assert.Equal(t, []domain.Group{g1}, vm.Groups())
	assert.Empty(t, svc.calls)
}

func TestCacheMissFetchesAppliesAndReloads(t *testing.T) {
	vm, repo, svc, _ := newTestVM(42)
	vm.Start()

	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	assert.Equal(t, domain.LoadStateLoading, vm.State())
	require.Equal(t, []domain.ContentID{42}, svc.calls)

	update := domain.CacheUpdate{
		Contents: []domain.Content{{ID: 42, ContentType: domain.ContentTypeCollection}, {ID: 43, GroupID: 9}},
		Groups:   []domain.Group{{ID: 9, ContentID: 42}},
	}
	details := domain.ContentDetails{Content: domain.Content{ID: 42}}
	svc.complete(0, details, update, nil)

	require.Len(t, repo.applied, 1)
	assert.Equal(t, update, repo.applied[0])

	// Reload re-subscribed exactly once and waits for the cache
	require.Len(t, repo.subs, 2)
	assert.Equal(t, domain.LoadStateLoading, vm.State())

	repo.emit(t, domain.ChildContentsState{Contents: []domain.Content{{ID: 43, GroupID: 9}}}, nil)
	assert.Equal(t, domain.LoadStateHasData, vm.State())
	assert.Len(t, vm.Contents(), 1)
	assert.Len(t, svc.calls, 1)
}

func TestCacheMissFetchFailure(t *testing.T) {
	vm, repo, svc, logs := newTestVM(3)
	vm.Start()

	repo.emit(t, domain.ChildContentsState{}, missErr(3))
	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{}, domain.ErrServerOffline)

	assert.Equal(t, domain.LoadStateFailed, vm.State())
	assert.Empty(t, repo.applied)
	assert.Len(t, repo.subs, 1)

	entries := failureEntries(t, logs)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.FailureFetch), entries[0]["kind"])
	assert.Equal(t, componentName, entries[0]["from"])
	assert.Contains(t, entries[0]["reason"], "unreachable")
	assert.EqualValues(t, 3, entries[0]["parent_id"])
}

func TestNonMissCacheErrorFailsWithoutFetch(t *testing.T) {
	vm, repo, svc, logs := newTestVM(5)
	vm.Start()

	repo.emit(t, domain.ChildContentsState{}, &domain.CacheError{Kind: domain.CacheDecode, ContentID: 5})

	assert.Equal(t, domain.LoadStateFailed, vm.State())
	assert.Empty(t, svc.calls)

	entries := failureEntries(t, logs)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.FailureRepositoryLoad), entries[0]["kind"])
}

func TestPlainErrorIsNotACacheMiss(t *testing.T) {
	vm, repo, svc, _ := newTestVM(5)
	vm.Start()

	repo.emit(t, domain.ChildContentsState{}, errors.New("disk on fire"))

	assert.Equal(t, domain.LoadStateFailed, vm.State())
	assert.Empty(t, svc.calls)
}

func TestApplyErrorFails(t *testing.T) {
	vm, repo, svc, logs := newTestVM(8)
	repo.applyErr = &domain.CacheError{Kind: domain.CacheStorage, Err: errors.New("read-only")}
	vm.Start()

	repo.emit(t, domain.ChildContentsState{}, missErr(8))
	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 8}}}, nil)

	assert.Equal(t, domain.LoadStateFailed, vm.State())
	assert.Len(t, repo.applied, 1)
	assert.Len(t, repo.subs, 1, "no reload after a failed apply")
	assert.Len(t, failureEntries(t, logs), 1)
}

func TestMissAfterApplyFailsWithoutRefetch(t *testing.T) {
	vm, repo, svc, logs := newTestVM(42)
	vm.Start()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 42}}}, nil)
	require.Len(t, repo.subs, 2)

	repo.emit(t, domain.ChildContentsState{}, missErr(42))

	assert.Equal(t, domain.LoadStateFailed, vm.State())
	assert.Len(t, svc.calls, 1)
	entries := failureEntries(t, logs)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.FailureRepositoryLoad), entries[0]["kind"])
	assert.Contains(t, entries[0]["reason"], "still missing")

	// An explicit reload is allowed to try the service again
	vm.Reload()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	assert.Len(t, svc.calls, 2)
}

func TestFailedRecoversOnReload(t *testing.T) {
	vm, repo, svc, _ := newTestVM(3)
	vm.Start()
	repo.emit(t, domain.ChildContentsState{}, missErr(3))
	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{}, errors.New("timeout"))
	require.Equal(t, domain.LoadStateFailed, vm.State())

	vm.Reload()
	assert.Equal(t, domain.LoadStateLoading, vm.State())
	repo.emit(t, domain.ChildContentsState{}, missErr(3))
	require.Len(t, svc.calls, 2)

	svc.complete(1, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 3}}}, nil)
	repo.emit(t, domain.ChildContentsState{Contents: []domain.Content{{ID: 30}}}, nil)
	assert.Equal(t, domain.LoadStateHasData, vm.State())
}

// === Subscriptions ===

func TestStartReplacesSubscription(t *testing.T) {
	vm, repo, _, _ := newTestVM(1)
	vm.Start()
	vm.Start()

	require.Len(t, repo.subs, 2)
	assert.True(t, repo.subs[0].cancelled)
	assert.False(t, repo.subs[1].cancelled)

	// A late emission on the replaced subscription is ignored
	repo.subs[0].observer(domain.ChildContentsState{}, errors.New("stale"))
	assert.Equal(t, domain.LoadStateInitial, vm.State())
}

func TestReloadTwiceCoalescesFetch(t *testing.T) {
	vm, repo, svc, _ := newTestVM(42)
	vm.Start()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))

	vm.Reload()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	vm.Reload()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))

	require.Len(t, svc.calls, 1)
	assert.Equal(t, domain.LoadStateLoading, vm.State())

	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 42}}}, nil)
	assert.Len(t, repo.applied, 1)
}

func TestRefreshFetchesEvenWithData(t *testing.T) {
	vm, repo, svc, _ := newTestVM(7)
	vm.Start()
	repo.emit(t, domain.ChildContentsState{Contents: []domain.Content{{ID: 70}}}, nil)
	require.Equal(t, domain.LoadStateHasData, vm.State())

	vm.Refresh()
	assert.Equal(t, domain.LoadStateLoading, vm.State())
	require.Equal(t, []domain.ContentID{7}, svc.calls)

	// Data from before the refresh stays visible while loading
	assert.Len(t, vm.Contents(), 1)

	vm.Refresh()
	assert.Len(t, svc.calls, 1, "refresh joins the in-flight fetch")
}

func TestOnChangeReportsTransitions(t *testing.T) {
	vm, repo, svc, _ := newTestVM(42)
	var states []domain.LoadState
	vm.OnChange(func(s Snapshot) {
		states = append(states, s.State)
	})

	vm.Start()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 42}}}, nil)
	repo.emit(t, domain.ChildContentsState{}, nil)

	assert.Equal(t, []domain.LoadState{
		domain.LoadStateLoading, // miss
		domain.LoadStateLoading, // reload
		domain.LoadStateHasData,
	}, states)
}

// === Teardown ===

func TestCloseWhileFetchInFlight(t *testing.T) {
	vm, repo, svc, _ := newTestVM(42)
	changes := 0
	vm.OnChange(func(Snapshot) { changes++ })

	vm.Start()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	before := vm.Snapshot()
	changesBefore := changes

	vm.Close()
	assert.True(t, repo.subs[0].cancelled)

	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 42}}}, nil)

	assert.Empty(t, repo.applied)
	assert.Len(t, repo.subs, 1)
	assert.Equal(t, before, vm.Snapshot())
	assert.Equal(t, changesBefore, changes)
}

func TestCloseDropsQueuedCallbacks(t *testing.T) {
	repo := &fakeRepo{}
	svc := &fakeService{}
	queue := dispatch.NewQueue(nil)
	vm := NewChildContents(42, repo, svc, queue, slog.New(slog.NewTextHandler(io.Discard, nil)))

	vm.Start()
	repo.emit(t, domain.ChildContentsState{}, missErr(42))
	require.Equal(t, 1, queue.Len(), "emission waits for the owner")
	queue.Drain()
	require.Len(t, svc.calls, 1)

	// Completion arrives and is queued, then the owner tears down first
	svc.complete(0, domain.ContentDetails{}, domain.CacheUpdate{Contents: []domain.Content{{ID: 42}}}, nil)
	vm.Close()
	queue.Drain()

	assert.Empty(t, repo.applied)
	assert.Equal(t, domain.LoadStateLoading, vm.State())
}

func TestMethodsAfterCloseAreNoOps(t *testing.T) {
	vm, repo, svc, _ := newTestVM(1)
	vm.Close()
	vm.Close()

	vm.Start()
	vm.Reload()
	vm.Refresh()

	assert.True(t, vm.Closed())
	assert.Empty(t, repo.subs)
	assert.Empty(t, svc.calls)
	assert.Equal(t, domain.LoadStateInitial, vm.State())
}

func TestSnapshotIsACopy(t *testing.T) {
	vm, repo, _, _ := newTestVM(7)
	vm.Start()
	repo.emit(t, domain.ChildContentsState{Contents: []domain.Content{{ID: 1, Name: "a"}}}, nil)

	snap := vm.Snapshot()
	snap.Contents[0].Name = "changed"
	assert.Equal(t, "a", vm.Contents()[0].Name)
}

// === With the real data cache ===

// syncService completes immediately on the calling goroutine
type syncService struct {
	details map[domain.ContentID]domain.ContentDetails
	calls   int
}

func (s *syncService) ContentDetails(id domain.ContentID, completion domain.ContentDetailsCompletion) {
	s.calls++
	d, ok := s.details[id]
	if !ok {
		completion(domain.ContentDetails{}, domain.CacheUpdate{}, domain.ErrContentNotFound)
		return
	}
	completion(d, domain.CacheUpdate{Contents: append([]domain.Content{d.Content}, d.Children...), Groups: d.Groups}, nil)
}

func TestDataCacheRoundTrip(t *testing.T) {
	st, err := store.NewContentStore("", "")
	require.NoError(t, err)
	cache, err := datacache.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	svc := &syncService{details: map[domain.ContentID]domain.ContentDetails{
		42: {
			Content: domain.Content{ID: 42, Name: "Course", ContentType: domain.ContentTypeCollection},
			Groups: []domain.Group{
				{ID: 2, ContentID: 42, Name: "Part 2", Ordinal: 2},
				{ID: 1, ContentID: 42, Name: "Part 1", Ordinal: 1},
			},
			Children: []domain.Content{
				{ID: 103, Name: "Three", GroupID: 2, Ordinal: 1},
				{ID: 102, Name: "Two", GroupID: 1, Ordinal: 2},
				{ID: 101, Name: "One", GroupID: 1, Ordinal: 1},
			},
		},
	}}

	vm := NewChildContents(42, cache, svc, dispatch.Inline{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	vm.Start()

	require.Equal(t, domain.LoadStateHasData, vm.State())
	assert.Equal(t, 1, svc.calls)

	var names []string
	for _, c := range vm.Contents() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"One", "Two", "Three"}, names)
	require.Len(t, vm.Groups(), 2)
	assert.Equal(t, "Part 1", vm.Groups()[0].Name)

	// Second view model for the same parent is served from the cache
	other := NewChildContents(42, cache, svc, dispatch.Inline{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	other.Start()
	assert.Equal(t, domain.LoadStateHasData, other.State())
	assert.Equal(t, 1, svc.calls)

	vm.Close()
	other.Close()
	assert.Equal(t, 0, cache.Subscribers())
}

// countingService answers every fetch with the same update
type countingService struct {
	update domain.CacheUpdate
	calls  int
}

func (s *countingService) ContentDetails(_ domain.ContentID, completion domain.ContentDetailsCompletion) {
	s.calls++
	if s.calls > 10 {
		completion(domain.ContentDetails{}, domain.CacheUpdate{}, errors.New("fetched too often"))
		return
	}
	completion(domain.ContentDetails{}, s.update, nil)
}

func TestDataCacheEmptyCollectionFetchesOnce(t *testing.T) {
	st, err := store.NewContentStore("", "")
	require.NoError(t, err)
	cache, err := datacache.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	// A course with no groups or episodes yet
	svc := &countingService{update: domain.CacheUpdate{
		Contents: []domain.Content{{ID: 42, Name: "Coming Soon", ContentType: domain.ContentTypeCollection}},
	}}
	var logs bytes.Buffer
	vm := NewChildContents(42, cache, svc, dispatch.Inline{}, slog.New(slog.NewJSONHandler(&logs, nil)))
	defer vm.Close()

	vm.Start()

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, domain.LoadStateFailed, vm.State())
	entries := failureEntries(t, &logs)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.FailureRepositoryLoad), entries[0]["kind"])

	vm.Reload()
	assert.Equal(t, 2, svc.calls)
	assert.Equal(t, domain.LoadStateFailed, vm.State())
}

func TestDataCacheNotFound(t *testing.T) {
	st, err := store.NewContentStore("", "")
	require.NoError(t, err)
	cache, err := datacache.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	svc := &syncService{}
	vm := NewChildContents(9, cache, svc, dispatch.Inline{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	vm.Start()

	assert.Equal(t, domain.LoadStateFailed, vm.State())
	assert.Equal(t, 1, svc.calls)
}
