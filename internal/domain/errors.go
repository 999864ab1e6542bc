package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrContentNotFound indicates the server has no content with the requested id
	ErrContentNotFound = errors.New("content not found")

	// ErrServerOffline indicates the content server is unreachable
	ErrServerOffline = errors.New("content server is unreachable")

	// ErrAuthFailed indicates authentication failed
	ErrAuthFailed = errors.New("authentication token is invalid")
)

// CacheErrorKind tags the variants of CacheError
type CacheErrorKind int

const (
	// CacheMiss means the cache holds no usable entry for the id.
	// It is the only cache error that should trigger a remote fetch.
	CacheMiss CacheErrorKind = iota
	// CacheDecode means a stored entry could not be decoded
	CacheDecode
	// CacheStorage means the persistence layer failed
	CacheStorage
)

func (k CacheErrorKind) String() string {
	switch k {
	case CacheMiss:
		return "cache miss"
	case CacheDecode:
		return "cache decode"
	case CacheStorage:
		return "cache storage"
	default:
		return "cache error"
	}
}

// CacheError is returned by the data cache
type CacheError struct {
	Kind      CacheErrorKind
	ContentID ContentID
	Err       error
}

func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s for content %d: %v", e.Kind, e.ContentID, e.Err)
	}
	return fmt.Sprintf("%s for content %d", e.Kind, e.ContentID)
}

func (e *CacheError) Unwrap() error { return e.Err }

// IsCacheMiss reports whether err is a CacheError of kind CacheMiss
func IsCacheMiss(err error) bool {
	var cacheErr *CacheError
	if !errors.As(err, &cacheErr) {
		return false
	}
	return cacheErr.Kind == CacheMiss
}
