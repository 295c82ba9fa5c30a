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

// Package driver binds packages joint and shard to a byte source and
// one or more byte sinks. It has no notion of files, flags or
// terminals; a collaborator (cmd/xpar) resolves those and passes this
// package plain io.Reader/io.Writer values.
package driver

import (
	"io"

	"github.com/pkg/errors"

	"github.com/kspalaiologos/xpar/internal/interlace"
	"github.com/kspalaiologos/xpar/internal/joint"
	"github.com/kspalaiologos/xpar/internal/shard"
)

// WarnFunc receives non-fatal integrity complaints raised under force mode.
type WarnFunc func(error)

// EncodeJoint streams src through the joint-container writer into dst.
func EncodeJoint(src io.Reader, dst io.Writer, ifactor int, workers int) (joint.Stats, error) {
	f := interlace.Factor(ifactor)
	if !f.Valid() {
		return joint.Stats{}, errors.Errorf("driver: invalid ifactor %d", ifactor)
	}
	return joint.Encode(src, dst, joint.Options{Ifactor: f, Workers: workers})
}

// DecodeJoint streams a joint container from src into dst.
func DecodeJoint(src io.Reader, dst io.Writer, force bool, workers int, onWarn WarnFunc) (joint.Stats, error) {
	var cb func(error)
	if onWarn != nil {
		cb = onWarn
	}
	return joint.Decode(src, dst, joint.Options{
		Force:     force,
		Workers:   workers,
		OnWarning: cb,
	})
}

// ShardOutput pairs a shard's index with its ready-to-write bytes
// (header followed by payload).
type ShardOutput struct {
	Index int
	Bytes []byte
}

// EncodeSharded reads all of src, computes D+P shards and returns them
// with their headers already attached, in index order.
func EncodeSharded(src io.Reader, d, p int) ([]ShardOutput, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(err, "reading input")
	}

	enc, err := shard.NewEncoder(d, p)
	if err != nil {
		return nil, err
	}
	payloads, _, err := enc.Encode(data)
	if err != nil {
		return nil, err
	}

	totalSize := uint64(len(data))
	out := make([]ShardOutput, len(payloads))
	for i, payload := range payloads {
		hdr := shard.WriteHeader(d, p, i, totalSize, payload)
		buf := make([]byte, 0, len(hdr)+len(payload))
		buf = append(buf, hdr...)
		buf = append(buf, payload...)
		out[i] = ShardOutput{Index: i, Bytes: buf}
	}
	return out, nil
}

// DecodeSharded reads every candidate shard from srcs, drops invalid
// or minority shards, and reconstructs the original payload, writing
// it to dst.
func DecodeSharded(srcs []io.Reader, dst io.Writer, onWarn WarnFunc) error {
	candidates := make([]*shard.Candidate, 0, len(srcs))
	for i, src := range srcs {
		raw, err := io.ReadAll(src)
		if err != nil {
			return errors.Wrapf(err, "reading shard %d", i)
		}
		c, err := shard.Parse(raw)
		if err != nil {
			if onWarn != nil {
				onWarn(errors.Wrapf(err, "shard %d rejected", i))
			}
			continue
		}
		candidates = append(candidates, c)
	}

	d, p, totalSize, shardSize, kept, err := shard.Consensus(candidates)
	if err != nil {
		return err
	}
	if len(kept) < len(candidates) && onWarn != nil {
		onWarn(errors.New("driver: one or more shards disagreed with consensus and were dropped"))
	}

	out, err := shard.Reconstruct(d, p, totalSize, shardSize, kept)
	if err != nil {
		return err
	}

	if _, err := dst.Write(out); err != nil {
		return errors.Wrap(err, "writing output")
	}
	return nil
}
