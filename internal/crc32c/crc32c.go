// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package crc32c computes the Castagnoli variant of CRC-32 (polynomial
// 0x1EDC6F41) over arbitrary byte spans, used to guard every joint lace
// and every shard payload against silent corruption.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32C of data. There is no alignment requirement
// on data; callers may pass any byte span, including sub-slices of a
// larger buffer.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// New returns a running CRC32C hash, for callers that want to feed data
// incrementally instead of computing over one contiguous span.
func New() *Hash {
	return &Hash{h: crc32.New(table)}
}

// Hash wraps hash/crc32 with the Castagnoli table pre-selected.
type Hash struct {
	h uint32HashCloser
}

type uint32HashCloser interface {
	Write(p []byte) (int, error)
	Sum32() uint32
	Reset()
}

// Write feeds more data into the running checksum.
func (h *Hash) Write(p []byte) (int, error) { return h.h.Write(p) }

// Sum32 returns the checksum accumulated so far.
func (h *Hash) Sum32() uint32 { return h.h.Sum32() }

// Reset clears the accumulated state.
func (h *Hash) Reset() { h.h.Reset() }
