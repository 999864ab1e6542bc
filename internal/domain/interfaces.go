package domain

// Subscription is a handle to an active observation.
// Cancel is idempotent; no emission starts after it returns.
type Subscription interface {
	Cancel()
}

// ChildContentsObserver receives cache emissions for a parent.
// Exactly one of state or err is meaningful; an error ends the subscription.
type ChildContentsObserver func(state ChildContentsState, err error)

// Repository is the reactive local cache of catalogue data.
type Repository interface {
	// ObserveChildContents emits the current child contents of parentID and
	// re-emits whenever an applied update touches them.
	ObserveChildContents(parentID ContentID, observer ChildContentsObserver) Subscription

	// Apply merges an update into the cache. Safe for concurrent use.
	Apply(update CacheUpdate) error
}

// ContentDetailsCompletion receives the result of a remote fetch
type ContentDetailsCompletion func(details ContentDetails, update CacheUpdate, err error)

// ContentsService fetches content from the remote server.
type ContentsService interface {
	// ContentDetails returns immediately; completion is called exactly once,
	// on an unspecified goroutine.
	ContentDetails(id ContentID, completion ContentDetailsCompletion)
}
