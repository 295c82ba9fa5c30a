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

// Package shard implements xpar's sharded mode: a systematic
// Reed-Solomon erasure code over GF(256), built from package matrix's
// Vandermonde construction, together with the 19-byte shard header
// format and the consensus-based reconstruction protocol described in
// the specification.
package shard

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/kspalaiologos/xpar/internal/crc32c"
	"github.com/kspalaiologos/xpar/internal/matrix"
)

const (
	// HeaderSize is the fixed size of a shard's header, in bytes.
	HeaderSize = 19
	magic      = "XPAS"
	// MaxDataShards is the largest number of data shards supported.
	MaxDataShards = 127
	// MaxParityShards is the largest number of parity shards supported.
	MaxParityShards = 63
)

var (
	// ErrBadMagic is returned when a candidate shard doesn't start with "XPAS".
	ErrBadMagic = errors.New("shard: bad magic")
	// ErrCRCMismatch is returned when a shard's payload fails its stored CRC32C.
	ErrCRCMismatch = errors.New("shard: crc mismatch")
	// ErrTruncated is returned when a candidate shard is shorter than its header.
	ErrTruncated = errors.New("shard: truncated header")
	// ErrInvalidCounts is returned for out-of-range D or P.
	ErrInvalidCounts = errors.New("shard: invalid data/parity shard counts")
	// ErrTooFewShards is returned when fewer than D valid shards survive consensus.
	ErrTooFewShards = errors.New("shard: fewer than D valid shards")
	// ErrDuplicateIndex is returned when two valid shards share an index.
	ErrDuplicateIndex = errors.New("shard: duplicate shard index")
	// ErrSingularMatrix is returned when the present shard indices can't be inverted.
	ErrSingularMatrix = errors.New("shard: singular reconstruction matrix")
)

// Encoder computes parity shards for a fixed (D,P) configuration.
type Encoder struct {
	D, P  int
	parity matrix.Matrix // P x D matrix, the bottom rows of the encoder matrix
}

// NewEncoder builds the Vandermonde-derived systematic encoder matrix
// for d data shards and p parity shards: E = V_(d+p)xd * (V_dxd)^-1.
// The top d rows of E are the identity by construction; only the
// bottom p rows (the parity coefficients) are retained.
func NewEncoder(d, p int) (*Encoder, error) {
	if d <= 0 || d > MaxDataShards || p <= 0 || p > MaxParityShards {
		return nil, ErrInvalidCounts
	}
	rows, err := EncoderMatrix(d, p)
	if err != nil {
		return nil, err
	}
	parity, err := rows.Sub(d, 0, p, d)
	if err != nil {
		return nil, errors.Wrap(err, "extracting parity rows")
	}
	return &Encoder{D: d, P: p, parity: parity}, nil
}

// EncoderMatrix returns the full (d+p) x d systematic encoder matrix.
func EncoderMatrix(d, p int) (matrix.Matrix, error) {
	total := d + p
	vTotal, err := matrix.Vandermonde(total, d)
	if err != nil {
		return nil, errors.Wrap(err, "building vandermonde")
	}
	vTop, err := vTotal.Sub(0, 0, d, d)
	if err != nil {
		return nil, err
	}
	vTopInv, err := vTop.Invert()
	if err != nil {
		return nil, errors.Wrap(err, "top square of vandermonde is singular")
	}
	return vTotal.Mul(vTopInv)
}

// Encode pads data to D*shardSize with zeros (shardSize = ceil(len/D))
// and returns D+P shard payloads, each shardSize bytes, the first D of
// which are the original data (systematic) and the last P the computed
// parity rows.
func (e *Encoder) Encode(data []byte) (shards [][]byte, shardSize int, err error) {
	shardSize = (len(data) + e.D - 1) / e.D
	if shardSize == 0 {
		shardSize = 1
	}

	shards = make([][]byte, e.D+e.P)
	for i := 0; i < e.D; i++ {
		shards[i] = make([]byte, shardSize)
		lo := i * shardSize
		hi := lo + shardSize
		if lo < len(data) {
			if hi > len(data) {
				hi = len(data)
			}
			copy(shards[i], data[lo:hi])
		}
	}

	for j := 0; j < e.P; j++ {
		parityRow := make([]byte, shardSize)
		for k := 0; k < e.D; k++ {
			a := e.parity[j][k]
			if a == 0 {
				continue
			}
			accumulateScaled(parityRow, shards[k], a)
		}
		shards[e.D+j] = parityRow
	}

	return shards, shardSize, nil
}

// accumulateScaled does dst ^= a*src over GF(256).
func accumulateScaled(dst, src []byte, a byte) {
	row := matrix.PROD_ROW(a, src)
	for i, v := range row {
		dst[i] ^= v
	}
}

// WriteHeader formats the 19-byte header for one shard.
func WriteHeader(d, p, index int, totalSize uint64, payload []byte) []byte {
	h := make([]byte, HeaderSize)
	copy(h[0:4], magic)
	binary.BigEndian.PutUint32(h[4:8], crc32c.Checksum(payload))
	h[8] = byte(d)
	h[9] = byte(p)
	h[10] = byte(index)
	binary.BigEndian.PutUint64(h[11:19], totalSize)
	return h
}

// Candidate is a parsed, CRC-validated shard: header fields plus payload.
type Candidate struct {
	D, P, Index int
	TotalSize   uint64
	ShardSize   int
	Payload     []byte
}

// Parse validates a raw shard (header+payload) and extracts its fields.
// It checks the magic and the CRC32C over the payload, but does not
// cross-check D/P/TotalSize/ShardSize against any other shard -- that
// is Consensus's job.
func Parse(raw []byte) (*Candidate, error) {
	if len(raw) < HeaderSize {
		return nil, ErrTruncated
	}
	if string(raw[0:4]) != magic {
		return nil, ErrBadMagic
	}
	wantCRC := binary.BigEndian.Uint32(raw[4:8])
	payload := raw[HeaderSize:]
	if crc32c.Checksum(payload) != wantCRC {
		return nil, ErrCRCMismatch
	}
	return &Candidate{
		D:         int(raw[8]),
		P:         int(raw[9]),
		Index:     int(raw[10]),
		TotalSize: binary.BigEndian.Uint64(raw[11:19]),
		ShardSize: len(payload),
		Payload:   payload,
	}, nil
}

// Consensus picks the majority (D, P, TotalSize, ShardSize) tuple among
// candidates, drops any candidate disagreeing with it on any of the
// four fields, and fails if two surviving candidates share an index or
// if fewer than D candidates survive.
// Ties in the majority vote resolve to the first value encountered
// after sorting the observed values, matching the reference's
// order-dependent behaviour.
func Consensus(candidates []*Candidate) (d, p int, totalSize uint64, shardSize int, kept []*Candidate, err error) {
	if len(candidates) == 0 {
		return 0, 0, 0, 0, nil, ErrTooFewShards
	}

	ds := make([]uint64, len(candidates))
	ps := make([]uint64, len(candidates))
	szs := make([]uint64, len(candidates))
	shs := make([]uint64, len(candidates))
	for i, c := range candidates {
		ds[i] = uint64(c.D)
		ps[i] = uint64(c.P)
		szs[i] = c.TotalSize
		shs[i] = uint64(c.ShardSize)
	}

	dMaj := majority(ds)
	pMaj := majority(ps)
	szMaj := majority(szs)
	shMaj := majority(shs)

	seen := make(map[int]*Candidate)
	for _, c := range candidates {
		if uint64(c.D) != dMaj || uint64(c.P) != pMaj || c.TotalSize != szMaj || uint64(c.ShardSize) != shMaj {
			continue
		}
		if prev, ok := seen[c.Index]; ok && prev != c {
			return 0, 0, 0, 0, nil, ErrDuplicateIndex
		}
		seen[c.Index] = c
	}

	for _, c := range seen {
		kept = append(kept, c)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })
	if len(kept) < int(dMaj) {
		return 0, 0, 0, 0, nil, ErrTooFewShards
	}

	return int(dMaj), int(pMaj), szMaj, int(shMaj), kept, nil
}

// majority returns the most frequent value in vs, breaking ties by
// picking the smallest value among those tied for the lead (i.e. the
// first one encountered after sorting the distinct values).
func majority(vs []uint64) uint64 {
	sorted := append([]uint64(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	counts := make(map[uint64]int)
	for _, v := range sorted {
		counts[v]++
	}

	best := sorted[0]
	bestCount := 0
	for _, v := range sorted {
		if counts[v] > bestCount {
			bestCount = counts[v]
			best = v
		}
	}
	return best
}

// Reconstruct rebuilds the original payload from kept shards (as
// produced by Consensus) once D, P, totalSize and shardSize are known.
// If count >= D+P, no data shard is missing and the result is a
// straight concatenation; otherwise a D x D system is solved against
// the original encoder matrix's rows at the present indices.
func Reconstruct(d, p int, totalSize uint64, shardSize int, kept []*Candidate) ([]byte, error) {
	if len(kept) < d {
		return nil, ErrTooFewShards
	}

	byIndex := make(map[int]*Candidate, len(kept))
	for _, c := range kept {
		byIndex[c.Index] = c
	}

	if len(kept) >= d+p {
		out := make([]byte, 0, d*shardSize)
		for i := 0; i < d; i++ {
			c, ok := byIndex[i]
			if !ok {
				return nil, ErrTooFewShards
			}
			out = append(out, c.Payload...)
		}
		return truncate(out, totalSize), nil
	}

	full, err := EncoderMatrix(d, p)
	if err != nil {
		return nil, err
	}

	present := make([]int, 0, d)
	for idx := range byIndex {
		present = append(present, idx)
		if len(present) == d {
			break
		}
	}
	sort.Ints(present)
	if len(present) < d {
		return nil, ErrTooFewShards
	}

	sub := matrix.New(d, d)
	rowShards := make([][]byte, d)
	for i, idx := range present {
		copy(sub[i], full[idx])
		rowShards[i] = byIndex[idx].Payload
	}

	inv, err := sub.Invert()
	if err != nil {
		return nil, ErrSingularMatrix
	}

	out := make([]byte, 0, d*shardSize)
	for row := 0; row < d; row++ {
		dataRow := make([]byte, shardSize)
		for k := 0; k < d; k++ {
			a := inv[row][k]
			if a == 0 {
				continue
			}
			accumulateScaled(dataRow, rowShards[k], a)
		}
		out = append(out, dataRow...)
	}

	return truncate(out, totalSize), nil
}

func truncate(b []byte, size uint64) []byte {
	if uint64(len(b)) > size {
		return b[:size]
	}
	return b
}
