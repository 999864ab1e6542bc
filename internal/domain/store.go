package domain

// Store persists cached catalogue records (BoltDB, or memory only).
type Store interface {
	// SaveUpdate persists every record of update atomically.
	SaveUpdate(update CacheUpdate) error

	// LoadContents returns every stored content. Entries that fail to decode
	// are reported by id in the second return value.
	LoadContents() ([]Content, []ContentID, error)
	LoadGroups() ([]Group, error)

	InvalidateAll() error
	Close() error
}
