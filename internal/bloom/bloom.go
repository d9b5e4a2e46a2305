// Package bloom implements a fixed-size, double-hash bloom filter used by
// the storage engine as an admission test before a point lookup pays for an
// index probe and a data-file seek.
package bloom

import (
	"hash/crc32"
	"math"
)

// Filter is a packed bit array plus the two independent hashes used to
// derive each item's k probe positions. It has no false negatives: every
// item ever added to it will test positive. It is not persisted; the
// storage engine rebuilds one from its primary index on startup.
type Filter struct {
	bits []uint64
	m    uint64 // number of bits
	k    uint64 // number of hash probes per item
}

// New sizes a filter for n expected items at a target false-positive rate p.
// m and k are derived with the standard formulas:
//
//	m = ceil(-n * ln(p) / (ln 2)^2)
//	k = round((m/n) * ln 2)
func New(n uint64, p float64) *Filter {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}

	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := uint64(math.Round((float64(m) / float64(n)) * math.Ln2))
	if k == 0 {
		k = 1
	}

	words := (m + 63) / 64
	return &Filter{
		bits: make([]uint64, words),
		m:    m,
		k:    k,
	}
}

// Add sets the bit for each of item's k probe positions.
func (f *Filter) Add(item []byte) {
	h1, h2 := hashPair(item)
	for i := uint64(0); i < f.k; i++ {
		f.setBit(f.probe(h1, h2, i))
	}
}

// MightContain reports whether item may be in the set. A false return is
// certain; a true return may be a false positive.
func (f *Filter) MightContain(item []byte) bool {
	h1, h2 := hashPair(item)
	for i := uint64(0); i < f.k; i++ {
		if !f.testBit(f.probe(h1, h2, i)) {
			return false
		}
	}
	return true
}

// K returns the number of hash probes per item, mostly useful for tests.
func (f *Filter) K() uint64 { return f.k }

// M returns the number of bits in the filter.
func (f *Filter) M() uint64 { return f.m }

func (f *Filter) probe(h1, h2 uint32, i uint64) uint64 {
	combined := uint64(h1) + i*uint64(h2)
	return combined % f.m
}

func (f *Filter) setBit(pos uint64) {
	f.bits[pos/64] |= 1 << (pos % 64)
}

func (f *Filter) testBit(pos uint64) bool {
	return f.bits[pos/64]&(1<<(pos%64)) != 0
}

// hashPair computes two independent 32-bit hashes of item: CRC32 of the
// bytes and CRC32 of the bytes reversed, which avoids pulling in a second
// hash implementation. For a palindromic key the reversed bytes equal the
// original, so h1 == h2 and its probes are (h1 + i*h1) mod m.
func hashPair(item []byte) (uint32, uint32) {
	h1 := crc32.ChecksumIEEE(item)

	reversed := make([]byte, len(item))
	for i, b := range item {
		reversed[len(item)-1-i] = b
	}
	h2 := crc32.ChecksumIEEE(reversed)

	return h1, h2
}
