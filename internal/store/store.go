package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/lectern/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketContents = []byte("contents")
	bucketGroups   = []byte("groups")
)

var allBuckets = [][]byte{bucketContents, bucketGroups}

// ContentStore implements domain.Store using BoltDB.
type ContentStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// Records keyed by bucket:id, used only in memory-only mode
	cache map[string][]byte
}

func NewContentStore(baseCacheDir, serverURL string) (*ContentStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &ContentStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "lectern.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ContentStore{db: db}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *ContentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

type record struct {
	key  string
	data []byte
}

// batch is a set of records bound for one bucket
type batch struct {
	bucket  []byte
	records []record
}

// putAll writes every batch in a single transaction
func (s *ContentStore) putAll(batches ...batch) error {
	if s.db == nil {
		// Memory-only mode
		s.mu.Lock()
		for _, bt := range batches {
			for _, r := range bt.records {
				s.cache[string(bt.bucket)+":"+r.key] = r.data
			}
		}
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bt := range batches {
			b := tx.Bucket(bt.bucket)
			for _, r := range bt.records {
				if err := b.Put([]byte(r.key), r.data); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// scan returns every record in the bucket
func (s *ContentStore) scan(bucket []byte) ([]record, error) {
	var records []record

	if s.db == nil {
		prefix := string(bucket) + ":"
		s.mu.RLock()
		for k, v := range s.cache {
			if strings.HasPrefix(k, prefix) {
				records = append(records, record{key: strings.TrimPrefix(k, prefix), data: v})
			}
		}
		s.mu.RUnlock()
		sort.Slice(records, func(i, j int) bool { return records[i].key < records[j].key })
		return records, nil
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			data := make([]byte, len(v))
			copy(data, v)
			records = append(records, record{key: string(k), data: data})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// === Updates ===

// SaveUpdate persists the groups and contents of update in one transaction.
func (s *ContentStore) SaveUpdate(update domain.CacheUpdate) error {
	groups, err := groupRecords(update.Groups)
	if err != nil {
		return err
	}
	contents, err := contentRecords(update.Contents)
	if err != nil {
		return err
	}
	return s.putAll(
		batch{bucket: bucketGroups, records: groups},
		batch{bucket: bucketContents, records: contents},
	)
}

// === Contents ===

func (s *ContentStore) SaveContents(contents []domain.Content) error {
	return s.SaveUpdate(domain.CacheUpdate{Contents: contents})
}

func contentRecords(contents []domain.Content) ([]record, error) {
	records := make([]record, 0, len(contents))
	for _, c := range contents {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		records = append(records, record{key: strconv.Itoa(int(c.ID)), data: data})
	}
	return records, nil
}

func (s *ContentStore) LoadContents() ([]domain.Content, []domain.ContentID, error) {
	records, err := s.scan(bucketContents)
	if err != nil {
		return nil, nil, err
	}

	contents := make([]domain.Content, 0, len(records))
	var corrupt []domain.ContentID
	for _, r := range records {
		var c domain.Content
		if err := json.Unmarshal(r.data, &c); err != nil {
			if id, convErr := strconv.Atoi(r.key); convErr == nil {
				corrupt = append(corrupt, domain.ContentID(id))
			}
			continue
		}
		contents = append(contents, c)
	}
	return contents, corrupt, nil
}

// === Groups ===

func (s *ContentStore) SaveGroups(groups []domain.Group) error {
	return s.SaveUpdate(domain.CacheUpdate{Groups: groups})
}

func groupRecords(groups []domain.Group) ([]record, error) {
	records := make([]record, 0, len(groups))
	for _, g := range groups {
		data, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		records = append(records, record{key: strconv.Itoa(int(g.ID)), data: data})
	}
	return records, nil
}

func (s *ContentStore) LoadGroups() ([]domain.Group, error) {
	records, err := s.scan(bucketGroups)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.Group, 0, len(records))
	for _, r := range records {
		var g domain.Group
		if err := json.Unmarshal(r.data, &g); err != nil {
			// A group we cannot read is as good as absent
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// === Invalidation ===

func (s *ContentStore) InvalidateAll() error {
	if s.db == nil {
		s.mu.Lock()
		s.cache = make(map[string][]byte)
		s.mu.Unlock()
		return nil
	}

	// Delete all data from all buckets
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}
