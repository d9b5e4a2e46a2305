// Package config holds the tunables for a dikkidb store: WAL batching and
// rotation, the bloom filter's sizing, and the storage engine's cache and
// read-block sizes.
package config

// Config is the full configuration for a Database instance.
type Config struct {
	DataDir string

	WAL     WALConfig
	Storage StorageConfig
	DB      DBConfig
}

// WALConfig configures the write-ahead log.
type WALConfig struct {
	// MaxBatchSize is the WAL's configured flush threshold (entries, not
	// bytes). The WAL does not flush on its own when it is reached; the
	// Database flushes the WAL on every Commit, whose threshold is
	// DBConfig.MaxBatchSize.
	MaxBatchSize int

	// MaxLogSizeMB is the total size, summed across all live segments, that
	// triggers a rotation once a flush crosses it.
	MaxLogSizeMB uint64

	// OptimalFileSizeMB is the per-segment cap; a flush that would cross it
	// opens a new segment first.
	OptimalFileSizeMB uint64
}

// StorageConfig configures the append-only data file and its in-memory
// supporting structures.
type StorageConfig struct {
	// ReadBlockBytes bounds a single Get's initial read from data.db.
	ReadBlockBytes int

	// MaxCacheSize is the number of documents held in the FIFO hot cache.
	MaxCacheSize int

	// IndexFlushInterval is the number of index mutations between
	// atomic snapshots of index.bin.
	IndexFlushInterval int

	// BloomExpectedItems and BloomFalsePositiveRate size the admission
	// filter rebuilt from the index on startup.
	BloomExpectedItems     uint64
	BloomFalsePositiveRate float64
}

// DBConfig configures the Database façade.
type DBConfig struct {
	// MaxBatchSize is the number of pending put/delete operations that
	// triggers an automatic commit when AutoCommit is true.
	MaxBatchSize int

	// AutoCommit controls whether put/delete implicitly commit once the
	// batch threshold is crossed. beginBatch() turns this off until
	// endBatch() restores it.
	AutoCommit bool
}

// DefaultConfig returns the configuration used when a caller does not
// override any tunable.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		WAL: WALConfig{
			MaxBatchSize:      1000,
			MaxLogSizeMB:      100,
			OptimalFileSizeMB: 64,
		},
		Storage: StorageConfig{
			ReadBlockBytes:         8 * 1024,
			MaxCacheSize:           10_000,
			IndexFlushInterval:     1000,
			BloomExpectedItems:     1_000_000,
			BloomFalsePositiveRate: 0.01,
		},
		DB: DBConfig{
			MaxBatchSize: 1000,
			AutoCommit:   true,
		},
	}
}
