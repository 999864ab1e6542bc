// Package viewmodel holds presentation-facing state machines.
package viewmodel

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/mmcdole/lectern/internal/dispatch"
	"github.com/mmcdole/lectern/internal/domain"
)

const componentName = "viewmodel.ChildContents"

// Snapshot is a copy of the observable state of a ChildContents.
type Snapshot struct {
	ParentID domain.ContentID
	State    domain.LoadState
	Contents []domain.Content
	Groups   []domain.Group
}

// backref is the only path from pending callbacks to the view model.
// Close clears it, so late callbacks find nothing to mutate.
type backref struct {
	vm *ChildContents
}

// ChildContents loads the children of one parent content. The local cache is
// the source of truth; the service is consulted only when the cache reports
// a miss, or when Refresh asks for it.
//
// ChildContents is not safe for concurrent use. Every method must be called
// on the context behind its Dispatcher; cache and service callbacks are
// posted there before touching state.
type ChildContents struct {
	id         string
	parentID   domain.ContentID
	repo       domain.Repository
	service    domain.ContentsService
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger

	state    domain.LoadState
	contents []domain.Content
	groups   []domain.Group
	onChange func(Snapshot)

	ref        *backref
	generation uint64
	sub        domain.Subscription
	subToken   uint64 // Token of the live subscription
	fetchToken uint64 // Token of the in-flight fetch, 0 when idle
	applied    bool   // A fetched update was applied since the last Start, Reload or Refresh
	closed     bool
}

// NewChildContents creates a view model for parentID. Call Start to begin loading.
func NewChildContents(
	parentID domain.ContentID,
	repo domain.Repository,
	service domain.ContentsService,
	dispatcher dispatch.Dispatcher,
	logger *slog.Logger,
) *ChildContents {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = dispatch.Inline{}
	}

	vm := &ChildContents{
		id:         uuid.NewString(),
		parentID:   parentID,
		repo:       repo,
		service:    service,
		dispatcher: dispatcher,
		state:      domain.LoadStateInitial,
	}
	vm.logger = logger.With("viewmodel", vm.id, "parent_id", int(parentID))
	vm.ref = &backref{vm: vm}
	return vm
}

// ParentID returns the content whose children are loaded.
func (vm *ChildContents) ParentID() domain.ContentID { return vm.parentID }

// Closed reports whether Close has been called.
func (vm *ChildContents) Closed() bool { return vm.closed }

// State returns the current load state.
func (vm *ChildContents) State() domain.LoadState { return vm.state }

// Contents returns the loaded children in display order.
func (vm *ChildContents) Contents() []domain.Content { return vm.contents }

// Groups returns the loaded groups in display order.
func (vm *ChildContents) Groups() []domain.Group { return vm.groups }

// Snapshot returns a copy of the observable state.
func (vm *ChildContents) Snapshot() Snapshot {
	return Snapshot{
		ParentID: vm.parentID,
		State:    vm.state,
		Contents: append([]domain.Content(nil), vm.contents...),
		Groups:   append([]domain.Group(nil), vm.groups...),
	}
}

// OnChange registers fn to be called after every state transition.
func (vm *ChildContents) OnChange(fn func(Snapshot)) {
	vm.onChange = fn
}

// Start subscribes to the cache. Calling it again replaces the subscription.
func (vm *ChildContents) Start() {
	if vm.closed {
		return
	}
	vm.applied = false
	vm.subscribe()
}

// Reload restarts the cycle: loading, then a fresh cache subscription that
// falls back to the service on a miss. A fetch already in flight is reused.
// A miss that survives an applied fetch fails instead of fetching again.
func (vm *ChildContents) Reload() {
	if vm.closed {
		return
	}
	vm.applied = false
	vm.reload()
}

func (vm *ChildContents) reload() {
	vm.setState(domain.LoadStateLoading)
	vm.subscribe()
}

// Refresh fetches from the service regardless of what the cache holds.
func (vm *ChildContents) Refresh() {
	if vm.closed {
		return
	}
	vm.applied = false
	vm.fetchFromService()
}

// Close cancels the subscription and detaches any in-flight fetch.
func (vm *ChildContents) Close() {
	if vm.closed {
		return
	}
	vm.closed = true
	vm.applied = false
	vm.ref.vm = nil
	if vm.sub != nil {
		vm.sub.Cancel()
		vm.sub = nil
	}
	vm.subToken = 0
	vm.fetchToken = 0
	vm.onChange = nil
	vm.logger.Debug("view model closed")
}

func (vm *ChildContents) nextToken() uint64 {
	vm.generation++
	return vm.generation
}

func (vm *ChildContents) subscribe() {
	if vm.sub != nil {
		vm.sub.Cancel()
		vm.sub = nil
	}

	token := vm.nextToken()
	vm.subToken = token
	ref := vm.ref
	dispatcher := vm.dispatcher

	sub := vm.repo.ObserveChildContents(vm.parentID, func(state domain.ChildContentsState, err error) {
		dispatcher.Dispatch(func() {
			if target := ref.vm; target != nil {
				target.handleEmission(token, state, err)
			}
		})
	})

	// The first emission may already have replaced this subscription
	if vm.closed || vm.subToken != token {
		sub.Cancel()
		return
	}
	vm.sub = sub
}

func (vm *ChildContents) handleEmission(token uint64, state domain.ChildContentsState, err error) {
	if token != vm.subToken {
		return
	}

	switch {
	case err == nil:
		vm.applied = false
		vm.contents = state.Contents
		vm.groups = state.Groups
		vm.setState(domain.LoadStateHasData)

	case domain.IsCacheMiss(err) && vm.applied:
		// The fetched update did not fill the cache; another fetch would not either
		vm.applied = false
		vm.setState(domain.LoadStateFailed)
		domain.Failure{
			Kind:   domain.FailureRepositoryLoad,
			From:   componentName,
			Reason: "Fetched contents are still missing from the cache: " + err.Error(),
		}.Log(vm.logger)

	case domain.IsCacheMiss(err):
		vm.logger.Debug("cache miss, fetching from service")
		vm.fetchFromService()

	default:
		vm.setState(domain.LoadStateFailed)
		domain.Failure{
			Kind:   domain.FailureRepositoryLoad,
			From:   componentName,
			Reason: "Unable to retrieve child contents: " + err.Error(),
		}.Log(vm.logger)
	}
}

func (vm *ChildContents) fetchFromService() {
	vm.setState(domain.LoadStateLoading)
	if vm.fetchToken != 0 {
		vm.logger.Debug("fetch already in flight, coalescing")
		return
	}

	token := vm.nextToken()
	vm.fetchToken = token
	ref := vm.ref
	dispatcher := vm.dispatcher

	vm.service.ContentDetails(vm.parentID, func(_ domain.ContentDetails, update domain.CacheUpdate, err error) {
		dispatcher.Dispatch(func() {
			if target := ref.vm; target != nil {
				target.handleFetch(token, update, err)
			}
		})
	})
}

func (vm *ChildContents) handleFetch(token uint64, update domain.CacheUpdate, err error) {
	if token != vm.fetchToken {
		return
	}
	vm.fetchToken = 0

	if err != nil {
		vm.setState(domain.LoadStateFailed)
		domain.Failure{
			Kind:   domain.FailureFetch,
			From:   componentName,
			Reason: err.Error(),
		}.Log(vm.logger)
		return
	}

	if err := vm.repo.Apply(update); err != nil {
		vm.setState(domain.LoadStateFailed)
		domain.Failure{
			Kind:   domain.FailureRepositoryLoad,
			From:   componentName,
			Reason: "Unable to apply fetched contents: " + err.Error(),
		}.Log(vm.logger)
		return
	}

	vm.applied = true
	vm.reload()
}

func (vm *ChildContents) setState(state domain.LoadState) {
	vm.state = state
	if vm.onChange != nil {
		vm.onChange(vm.Snapshot())
	}
}
