package errors

import (
	"errors"
)

// Sentinel errors shared across the wal, storage and dikkidb packages.
//
// These map onto the error kinds from the design: InvariantViolation,
// IOFailure, DecodeFailure (non-fatal, never returned to a caller directly),
// RevisionGenerationFailure and RecoveryFailure.
var (
	// ErrEmptyID is an InvariantViolation: every operation requires a
	// non-empty DocumentId.
	ErrEmptyID = errors.New("document id must not be empty")

	// ErrDocNotFound names a negative lookup result. The read paths in this
	// module do not return it: they report a miss as ok=false with a nil
	// error.
	ErrDocNotFound = errors.New("document not found")

	// ErrPayloadTooLarge names an oversized record. Nothing in this module
	// returns it; a record read that passes 64 MiB without a newline fails
	// with ErrCorruptRecord.
	ErrPayloadTooLarge = errors.New("document exceeds maximum record size")

	// ErrCorruptRecord/ErrChecksumMismatch are DecodeFailures: callers that
	// see them during iteration or replay skip the offending line.
	ErrCorruptRecord    = errors.New("corrupt record: invalid length or format")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrFileOpen/ErrFileWrite/ErrFileSync/ErrFileRead/ErrFileRename are
	// IOFailures.
	ErrFileOpen   = errors.New("failed to open file")
	ErrFileWrite  = errors.New("failed to write file")
	ErrFileSync   = errors.New("failed to sync file")
	ErrFileRead   = errors.New("failed to read file")
	ErrFileRename = errors.New("failed to rename file")

	// ErrRevisionUnavailable is a RevisionGenerationFailure: the randomness
	// source used to mint a fresh _rev could not be read.
	ErrRevisionUnavailable = errors.New("revision generation source unavailable")

	// ErrRecoveryFailed is a RecoveryFailure: startup replay could not be
	// completed and the Database must not be used.
	ErrRecoveryFailed = errors.New("database recovery failed")

	// ErrDBClosed names an operation on a closed Database. Database does not
	// track whether Close has run, so nothing in this module returns it.
	ErrDBClosed = errors.New("database is closed")

	// ErrEmptyBatch names a batch with no pending operations. Nothing in
	// this module returns it; Commit treats an empty batch as a no-op.
	ErrEmptyBatch = errors.New("batch has no pending operations")
)
