package domain

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsCacheMiss(t *testing.T) {
	miss := &CacheError{Kind: CacheMiss, ContentID: 4}

	assert.True(t, IsCacheMiss(miss))
	assert.True(t, IsCacheMiss(fmt.Errorf("observe: %w", miss)))
	assert.False(t, IsCacheMiss(&CacheError{Kind: CacheDecode, ContentID: 4}))
	assert.False(t, IsCacheMiss(ErrContentNotFound))
	assert.False(t, IsCacheMiss(nil))
}

func TestCacheErrorMessage(t *testing.T) {
	assert.Equal(t, "cache miss for content 4", (&CacheError{Kind: CacheMiss, ContentID: 4}).Error())

	cause := errors.New("disk full")
	err := &CacheError{Kind: CacheStorage, Err: cause}
	assert.Equal(t, "cache storage for content 0: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestLoadStateString(t *testing.T) {
	assert.Equal(t, "initial", LoadStateInitial.String())
	assert.Equal(t, "loading", LoadStateLoading.String())
	assert.Equal(t, "hasData", LoadStateHasData.String())
	assert.Equal(t, "failed", LoadStateFailed.String())
}

func TestFormattedDuration(t *testing.T) {
	assert.Equal(t, "0m", Content{}.FormattedDuration())
	assert.Equal(t, "12m", Content{Duration: 12*time.Minute + 30*time.Second}.FormattedDuration())
	assert.Equal(t, "2h 5m", Content{Duration: 125 * time.Minute}.FormattedDuration())
}

func TestCacheUpdateIsEmpty(t *testing.T) {
	assert.True(t, CacheUpdate{}.IsEmpty())
	assert.False(t, CacheUpdate{Groups: []Group{{ID: 1}}}.IsEmpty())
}

func TestFailureLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Failure{Kind: FailureFetch, From: "Loader", Reason: "timeout"}.Log(logger, "parent_id", 9)

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "msg=failure")
	assert.Contains(t, out, "kind=fetch")
	assert.Contains(t, out, "from=Loader")
	assert.Contains(t, out, "reason=timeout")
	assert.Contains(t, out, "parent_id=9")
}
