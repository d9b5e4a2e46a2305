package wal

import (
	"bufio"
	"fmt"
	"os"

	"github.com/namankumar80510/dikkidb/internal/logger"
)

// Cursor is a lazy, single-use, forward-only iterator over every entry in
// every live segment of a WAL, oldest segment first. A line that fails to
// decode as a batch, or an entry whose checksum doesn't verify, is skipped
// and logged rather than treated as fatal: the WAL tolerates a torn write
// at the tail of its last segment.
type Cursor struct {
	walPath string
	log     *logger.Logger

	counters []int
	segIdx   int

	file    *os.File
	scanner *bufio.Scanner

	queue    []Entry
	queueIdx int

	closed bool
}

func newCursor(walPath string, counters []int, log *logger.Logger) *Cursor {
	return &Cursor{
		walPath:  walPath,
		log:      log,
		counters: counters,
	}
}

// Next returns the next entry, or (nil, nil) once every segment is
// exhausted.
func (c *Cursor) Next() (*Entry, error) {
	for {
		if c.queueIdx < len(c.queue) {
			e := c.queue[c.queueIdx]
			c.queueIdx++
			return &e, nil
		}

		if !c.advanceLine() {
			if err := c.closeSegment(); err != nil {
				return nil, err
			}
			if !c.openNextSegment() {
				return nil, nil
			}
			continue
		}
	}
}

// advanceLine decodes the next line of the current segment into c.queue.
// It returns false when the current segment (or scanner) has no more
// lines to offer.
func (c *Cursor) advanceLine() bool {
	if c.scanner == nil {
		return false
	}
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entries, err := decodeBatch(line)
		if err != nil {
			c.log.Warn("wal: skipping corrupt batch line in %s: %v", c.file.Name(), err)
			continue
		}
		verified := entries[:0]
		for _, e := range entries {
			if !e.verify() {
				c.log.Warn("wal: skipping entry with bad checksum (id=%s) in %s", e.ID, c.file.Name())
				continue
			}
			verified = append(verified, e)
		}
		if len(verified) == 0 {
			continue
		}
		c.queue = verified
		c.queueIdx = 0
		return true
	}
	return false
}

func (c *Cursor) openNextSegment() bool {
	for c.segIdx < len(c.counters) {
		counter := c.counters[c.segIdx]
		c.segIdx++

		f, err := os.Open(segmentPath(c.walPath, counter))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			c.log.Warn("wal: failed to open segment %d for replay: %v", counter, err)
			continue
		}
		c.file = f
		c.scanner = bufio.NewScanner(f)
		c.scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		c.queue = nil
		c.queueIdx = 0
		return true
	}
	return false
}

func (c *Cursor) closeSegment() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.scanner = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	return nil
}

// Close releases the cursor's current file handle. Safe to call more than
// once and safe to call after Next has returned (nil, nil).
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.closeSegment()
}
