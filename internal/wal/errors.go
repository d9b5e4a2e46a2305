package wal

import (
	walerrors "github.com/namankumar80510/dikkidb/internal/errors"
)

// Re-exported so callers only need to import this package for the common
// cases (empty id, corrupt line, checksum failure, I/O failure).
var (
	ErrEmptyID          = walerrors.ErrEmptyID
	ErrCorruptRecord    = walerrors.ErrCorruptRecord
	ErrChecksumMismatch = walerrors.ErrChecksumMismatch
	ErrFileOpen         = walerrors.ErrFileOpen
	ErrFileWrite        = walerrors.ErrFileWrite
	ErrFileSync         = walerrors.ErrFileSync
	ErrFileRead         = walerrors.ErrFileRead
	ErrFileRename       = walerrors.ErrFileRename
)
