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

// Package joint implements xpar's self-contained container format: a
// file header identifying the interlacing factor, followed by laces of
// RS(255,223)-encoded, optionally interlaced data, each closed by an
// 8-byte block header carrying the original byte count and a CRC32C.
//
// This package owns the I/O loop binding packages rs255, interlace and
// crc32c together; Encode and Decode are the only entry points a
// driver needs.
package joint

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/kspalaiologos/xpar/internal/crc32c"
	"github.com/kspalaiologos/xpar/internal/interlace"
	"github.com/kspalaiologos/xpar/internal/rs255"
)

const (
	// FileHeaderSize is the total size of the file header: 5 data bytes
	// plus 32 RS parity bytes.
	FileHeaderSize = 37
	fileHeaderData = 5

	// BlockHeaderSize is the size of the header that follows every lace.
	BlockHeaderSize = 8

	magicX    = 'X'
	magicP    = 'P'
	majorVer  = 1
	minorVer  = 0
)

// Errors surfaced by this package. Most structural failures are only
// fatal when the caller did not request force mode; Encode/Decode
// return them so the driver can decide how to report them.
var (
	ErrBadMagic      = errors.New("joint: bad file magic")
	ErrBadIfactor    = errors.New("joint: invalid interlacing factor byte")
	ErrHeaderDamaged = errors.New("joint: file header unrecoverable")
	ErrBadBlockMagic = errors.New("joint: bad block header magic")
	ErrCRCMismatch   = errors.New("joint: crc mismatch on decoded lace")
	ErrUnrecoverable = errors.New("joint: codeword has too many errors")
)

// Stats summarizes one Encode or Decode pass.
type Stats struct {
	Laces        int
	Corrected    int // total symbols corrected across all codewords
	ForcedErrors int // number of failures papered over by force mode
}

// BuildFileHeader returns the 37-byte file header for the given
// interlacing factor: the five data bytes 'X','P',MAJOR,MINOR,'0'+ifactor
// zero-padded to a 223-byte block and RS-encoded, keeping only the data
// bytes and the 32 parity bytes.
func BuildFileHeader(ifactor interlace.Factor) ([FileHeaderSize]byte, error) {
	var out [FileHeaderSize]byte
	if !ifactor.Valid() {
		return out, ErrBadIfactor
	}

	var block [rs255.K]byte
	block[0] = magicX
	block[1] = magicP
	block[2] = majorVer
	block[3] = minorVer
	block[4] = '0' + byte(ifactor)

	codeword := rs255.Encode(&block)
	copy(out[0:fileHeaderData], codeword[0:fileHeaderData])
	copy(out[fileHeaderData:], codeword[rs255.K:])
	return out, nil
}

// ParseFileHeader recovers the interlacing factor from a 37-byte file
// header, tolerating damage to the five data bytes by reconstructing
// the full 255-byte codeword (data bytes + known zero padding + stored
// parity) and RS-decoding it.
func ParseFileHeader(raw [FileHeaderSize]byte) (interlace.Factor, int, error) {
	var codeword [rs255.N]byte
	copy(codeword[0:fileHeaderData], raw[0:fileHeaderData])
	copy(codeword[rs255.K:], raw[fileHeaderData:])

	corrected := rs255.Decode(&codeword)
	if corrected < 0 {
		return 0, 0, ErrHeaderDamaged
	}

	if codeword[0] != magicX || codeword[1] != magicP {
		return 0, corrected, ErrBadMagic
	}
	f := interlace.Factor(codeword[4] - '0')
	if !f.Valid() {
		return 0, corrected, ErrBadIfactor
	}
	return f, corrected, nil
}

// buildBlockHeader formats the 8-byte header following a lace.
func buildBlockHeader(n int, crc uint32) [BlockHeaderSize]byte {
	var h [BlockHeaderSize]byte
	h[0] = magicX
	h[1] = byte(n >> 16)
	h[2] = byte(n >> 8)
	h[3] = byte(n)
	binary.BigEndian.PutUint32(h[4:8], crc)
	return h
}

func parseBlockHeader(raw [BlockHeaderSize]byte) (n int, crc uint32, err error) {
	if raw[0] != magicX {
		return 0, 0, ErrBadBlockMagic
	}
	n = int(raw[1])<<16 | int(raw[2])<<8 | int(raw[3])
	crc = binary.BigEndian.Uint32(raw[4:8])
	return n, crc, nil
}

// Options controls Encode/Decode behaviour.
type Options struct {
	Ifactor interlace.Factor
	// Force makes Decode log-and-continue on integrity failures instead
	// of aborting; Encode ignores Force.
	Force bool
	// Workers bounds how many codewords within one lace are processed
	// concurrently. 0 or 1 means sequential.
	Workers int
	// OnWarning, if set, is called for every non-fatal integrity issue
	// encountered under Force.
	OnWarning func(error)
}

// Encode reads src to EOF and writes the joint container to dst.
func Encode(src io.Reader, dst io.Writer, opt Options) (Stats, error) {
	var stats Stats
	if !opt.Ifactor.Valid() {
		return stats, ErrBadIfactor
	}

	hdr, err := BuildFileHeader(opt.Ifactor)
	if err != nil {
		return stats, err
	}
	if _, err := dst.Write(hdr[:]); err != nil {
		return stats, errors.Wrap(err, "writing file header")
	}

	ibs := opt.Ifactor.BlockSize(rs255.N)
	in := make([]byte, ibs*rs255.K)
	out := make([]byte, ibs*rs255.N)

	for {
		n, readErr := io.ReadFull(src, in)
		if n == 0 && readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return stats, errors.Wrap(readErr, "reading input")
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return stats, errors.Wrap(readErr, "reading input")
		}
		for i := n; i < len(in); i++ {
			in[i] = 0
		}

		encodeCodewords(in, out, ibs, opt.Workers)
		interlace.Apply(opt.Ifactor, out, rs255.N)

		if _, err := dst.Write(out); err != nil {
			return stats, errors.Wrap(err, "writing lace")
		}

		crc := crc32c.Checksum(in[:n])
		bh := buildBlockHeader(n, crc)
		if _, err := dst.Write(bh[:]); err != nil {
			return stats, errors.Wrap(err, "writing block header")
		}

		stats.Laces++
		if n < len(in) {
			break
		}
	}

	return stats, nil
}

func encodeCodewords(in, out []byte, ibs, workers int) {
	run := func(i int) {
		var block [rs255.K]byte
		copy(block[:], in[i*rs255.K:(i+1)*rs255.K])
		codeword := rs255.Encode(&block)
		copy(out[i*rs255.N:(i+1)*rs255.N], codeword[:])
	}

	if workers <= 1 || ibs == 1 {
		for i := 0; i < ibs; i++ {
			run(i)
		}
		return
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := 0; i < ibs; i++ {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			run(i)
		}()
	}
	wg.Wait()
}

// Decode reads a joint container from src and writes the recovered
// bytes to dst.
func Decode(src io.Reader, dst io.Writer, opt Options) (Stats, error) {
	var stats Stats

	var rawHdr [FileHeaderSize]byte
	if _, err := io.ReadFull(src, rawHdr[:]); err != nil {
		return stats, errors.Wrap(err, "reading file header")
	}
	ifactor, corrected, err := ParseFileHeader(rawHdr)
	if err != nil {
		if !opt.Force {
			return stats, err
		}
		if opt.OnWarning != nil {
			opt.OnWarning(err)
		}
		stats.ForcedErrors++
		ifactor = opt.Ifactor
		if !ifactor.Valid() {
			return stats, ErrHeaderDamaged
		}
	}
	stats.Corrected += corrected

	ibs := ifactor.BlockSize(rs255.N)
	laceBuf := make([]byte, ibs*rs255.N)

	for {
		n, readErr := io.ReadFull(src, laceBuf)
		if n == 0 && errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return stats, errors.Wrap(readErr, "reading lace")
		}
		if n < len(laceBuf) {
			if !opt.Force {
				return stats, errors.Wrap(io.ErrUnexpectedEOF, "truncated lace")
			}
			for i := n; i < len(laceBuf); i++ {
				laceBuf[i] = 0
			}
			if opt.OnWarning != nil {
				opt.OnWarning(errors.New("joint: truncated lace, zero-padded"))
			}
			stats.ForcedErrors++
		}

		var rawBlock [BlockHeaderSize]byte
		if _, err := io.ReadFull(src, rawBlock[:]); err != nil {
			if !opt.Force {
				return stats, errors.Wrap(err, "reading block header")
			}
			if opt.OnWarning != nil {
				opt.OnWarning(errors.Wrap(err, "joint: missing block header"))
			}
			stats.ForcedErrors++
			break
		}
		want, wantCRC, err := parseBlockHeader(rawBlock)
		if err != nil {
			if !opt.Force {
				return stats, err
			}
			if opt.OnWarning != nil {
				opt.OnWarning(err)
			}
			stats.ForcedErrors++
			want = ibs * rs255.K
		}

		interlace.Apply(ifactor, laceBuf, rs255.N)

		decoded, laceCorrected, decErr := decodeCodewords(laceBuf, ibs, opt.Workers)
		stats.Corrected += laceCorrected
		if decErr != nil {
			if !opt.Force {
				return stats, decErr
			}
			if opt.OnWarning != nil {
				opt.OnWarning(decErr)
			}
			stats.ForcedErrors++
		}

		limit := want
		if limit > len(decoded) {
			limit = len(decoded)
		}
		if crc32c.Checksum(decoded[:limit]) != wantCRC {
			if !opt.Force {
				return stats, ErrCRCMismatch
			}
			if opt.OnWarning != nil {
				opt.OnWarning(ErrCRCMismatch)
			}
			stats.ForcedErrors++
		}

		if _, err := dst.Write(decoded[:limit]); err != nil {
			return stats, errors.Wrap(err, "writing output")
		}

		stats.Laces++
		if n < len(laceBuf) {
			break
		}
	}

	return stats, nil
}

// decodeCodewords RS-decodes every codeword in a (possibly
// de-interlaced already) lace buffer, returning the concatenated first
// K bytes of each codeword plus the total corrected-symbol count. It
// keeps decoding all codewords even after one proves unrecoverable, so
// callers under force mode can still salvage the rest of the lace.
func decodeCodewords(laceBuf []byte, ibs, workers int) ([]byte, int, error) {
	out := make([]byte, ibs*rs255.K)
	corrected := make([]int, ibs)
	fail := make([]bool, ibs)

	run := func(i int) {
		var codeword [rs255.N]byte
		copy(codeword[:], laceBuf[i*rs255.N:(i+1)*rs255.N])
		c := rs255.Decode(&codeword)
		if c < 0 {
			fail[i] = true
			copy(out[i*rs255.K:(i+1)*rs255.K], codeword[:rs255.K])
			return
		}
		corrected[i] = c
		copy(out[i*rs255.K:(i+1)*rs255.K], codeword[:rs255.K])
	}

	if workers <= 1 || ibs == 1 {
		for i := 0; i < ibs; i++ {
			run(i)
		}
	} else {
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i := 0; i < ibs; i++ {
			i := i
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				run(i)
			}()
		}
		wg.Wait()
	}

	total := 0
	anyFail := false
	for i := 0; i < ibs; i++ {
		total += corrected[i]
		anyFail = anyFail || fail[i]
	}
	if anyFail {
		return out, total, ErrUnrecoverable
	}
	return out, total, nil
}
