package wal

const (
	// DefaultMaxBatchSize is the default flush threshold, in entries,
	// reported by WAL.MaxBatchSize. Log does not flush when it is reached.
	DefaultMaxBatchSize = 1000

	// DefaultMaxLogSizeMB is the total size, summed across live segments,
	// that triggers a rotation at the end of the flush that crosses it.
	DefaultMaxLogSizeMB = 100

	// DefaultOptimalFileSizeMB is the per-segment cap; a flush that would
	// cross it opens a new segment first.
	DefaultOptimalFileSizeMB = 64

	// oldSegmentSuffix marks an archived segment produced by Rotate.
	oldSegmentSuffix = ".old"
)
