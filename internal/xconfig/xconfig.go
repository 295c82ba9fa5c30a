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

// Package xconfig holds the resolved configuration for one xpar
// invocation, either built directly from CLI flags or loaded from an
// optional JSON config file that flags then override.
package xconfig

import (
	"encoding/json"
	"os"

	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
)

// Config mirrors the CLI surface: which container mode, which
// operation, and the knobs each needs.
type Config struct {
	Joint   bool `json:"joint"`
	Sharded bool `json:"sharded"`

	Encode bool `json:"encode"`
	Decode bool `json:"decode"`

	Ifactor int `json:"ifactor"`

	DataShards   int `json:"dshards"`
	ParityShards int `json:"pshards"`

	Input  string `json:"input"`
	Output string `json:"output"`

	Force   bool `json:"force"`
	Quiet   bool `json:"quiet"`
	Verbose bool `json:"verbose"`
	// NoMmap is accepted for CLI compatibility; xpar always reads
	// through buffered io.Reader/io.Writer, so it has no further effect.
	NoMmap bool `json:"no-mmap"`
	Stdout bool `json:"stdout"`

	Workers int `json:"workers"`
}

// Default returns a Config with xpar's defaults: joint mode, ifactor 1,
// 4 data and 2 parity shards, and a worker pool sized to the
// machine's logical core count as reported by cpuid, so an unqualified
// invocation already parallelizes across codewords within a lace.
func Default() Config {
	workers := cpuid.CPU.LogicalCores
	if workers < 1 {
		workers = 1
	}
	return Config{
		Joint:        true,
		Ifactor:      1,
		DataShards:   4,
		ParityShards: 2,
		Workers:      workers,
	}
}

// LoadFile reads a JSON config file into c, overwriting any field the
// file sets. Flags parsed afterwards by the caller should win over
// whatever this loads.
func LoadFile(c *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening config file")
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(c); err != nil {
		return errors.Wrap(err, "decoding config file")
	}
	return nil
}

// Validate checks the resolved configuration for the invariants the
// CLI surface promises: exactly one mode, exactly one operation, a
// supported ifactor, and in-range shard counts for a sharded encode.
func (c Config) Validate() error {
	if c.Joint == c.Sharded {
		return errors.New("xconfig: exactly one of joint or sharded mode must be selected")
	}
	if c.Encode == c.Decode {
		return errors.New("xconfig: exactly one of encode or decode must be selected")
	}
	if c.Joint {
		if c.Ifactor != 1 && c.Ifactor != 2 && c.Ifactor != 3 {
			return errors.New("xconfig: ifactor must be 1, 2 or 3")
		}
	}
	if c.Sharded && c.Encode {
		if c.DataShards < 1 || c.DataShards > 127 {
			return errors.New("xconfig: dshards must be in 1..127")
		}
		if c.ParityShards < 1 || c.ParityShards > 63 {
			return errors.New("xconfig: pshards must be in 1..63")
		}
	}
	return nil
}
