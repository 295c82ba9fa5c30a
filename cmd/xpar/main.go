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

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/urfave/cli"

	"github.com/kspalaiologos/xpar/internal/driver"
	"github.com/kspalaiologos/xpar/internal/xconfig"
	"github.com/kspalaiologos/xpar/internal/xlog"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	myApp := cli.NewApp()
	myApp.Name = "xpar"
	myApp.Usage = "byte-level error correction and erasure coding"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "J",
			Usage: "joint mode: single self-contained RS(255,223) container (default)",
		},
		cli.BoolFlag{
			Name:  "S",
			Usage: "sharded mode: split into D data shards and P parity shards",
		},
		cli.BoolFlag{
			Name:  "e",
			Usage: "encode",
		},
		cli.BoolFlag{
			Name:  "d",
			Usage: "decode",
		},
		cli.IntFlag{
			Name:  "i",
			Value: 1,
			Usage: "interlacing factor: 1, 2 or 3",
		},
		cli.IntFlag{
			Name:  "dshards",
			Value: 4,
			Usage: "number of data shards (sharded mode)",
		},
		cli.IntFlag{
			Name:  "pshards",
			Value: 2,
			Usage: "number of parity shards (sharded mode)",
		},
		cli.StringFlag{
			Name:  "o",
			Usage: "output path or prefix (sharded encode writes prefix.xpa.NNN)",
		},
		cli.BoolFlag{
			Name:  "force",
			Usage: "log integrity failures and continue instead of aborting",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "suppress informational output",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "show debug output, including detected CPU features and worker count",
		},
		cli.BoolFlag{
			Name:  "no-mmap",
			Usage: "accepted for compatibility; input and output are always buffered",
		},
		cli.BoolFlag{
			Name:  "c,stdout",
			Usage: "write the result to stdout instead of a file",
		},
		cli.IntFlag{
			Name:  "j",
			Value: xconfig.Default().Workers,
			Usage: "number of codewords to process in parallel within a lace",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "load options from a JSON config file, overridden by flags",
		},
	}
	myApp.ArgsUsage = "<input> [shard paths...]"
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := xconfig.Default()
	if path := c.String("config"); path != "" {
		if err := xconfig.LoadFile(&cfg, path); err != nil {
			return err
		}
	}

	if c.IsSet("J") || c.IsSet("S") {
		cfg.Joint = c.Bool("J")
		cfg.Sharded = c.Bool("S")
	}
	if !cfg.Joint && !cfg.Sharded {
		cfg.Joint = true
	}
	if c.IsSet("e") || c.IsSet("d") {
		cfg.Encode = c.Bool("e")
		cfg.Decode = c.Bool("d")
	}
	if c.IsSet("i") {
		cfg.Ifactor = c.Int("i")
	}
	if c.IsSet("dshards") {
		cfg.DataShards = c.Int("dshards")
	}
	if c.IsSet("pshards") {
		cfg.ParityShards = c.Int("pshards")
	}
	if c.IsSet("o") {
		cfg.Output = c.String("o")
	}
	cfg.Force = cfg.Force || c.Bool("force")
	cfg.Quiet = cfg.Quiet || c.Bool("quiet")
	cfg.Verbose = cfg.Verbose || c.Bool("verbose")
	cfg.NoMmap = cfg.NoMmap || c.Bool("no-mmap")
	cfg.Stdout = cfg.Stdout || c.Bool("c")
	if c.IsSet("j") {
		cfg.Workers = c.Int("j")
	}

	args := c.Args()
	if len(args) < 1 {
		return cli.NewExitError("xpar: missing input path", 1)
	}
	cfg.Input = args[0]

	if err := cfg.Validate(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	logger := xlog.New(cfg.Quiet, cfg.Verbose)
	if cfg.Verbose {
		logger.Debugf("cpu: %s, logical cores=%d, avx2=%v, workers=%d",
			cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, cpuid.CPU.Has(cpuid.AVX2), cfg.Workers)
	}

	if cfg.Joint {
		if cfg.Encode {
			return runJointEncode(cfg, logger)
		}
		return runJointDecode(cfg, logger)
	}
	if cfg.Encode {
		return runShardedEncode(cfg, logger)
	}
	return runShardedDecode(cfg, args[1:], logger)
}

func openInput(cfg xconfig.Config) (io.ReadCloser, error) {
	if cfg.Input == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(cfg.Input)
}

func openOutput(cfg xconfig.Config, defaultPath string) (io.WriteCloser, error) {
	if cfg.Stdout || defaultPath == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	path := cfg.Output
	if path == "" {
		path = defaultPath
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !cfg.Force {
		flags |= os.O_EXCL
	}
	return os.OpenFile(path, flags, 0644)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func runJointEncode(cfg xconfig.Config, logger interface {
	Infof(string, ...interface{})
}) error {
	in, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	outPath := cfg.Input + ".xpa"
	out, err := openOutput(cfg, outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	stats, err := driver.EncodeJoint(in, out, cfg.Ifactor, cfg.Workers)
	if err != nil {
		return err
	}
	logger.Infof("encoded %d laces at ifactor=%d", stats.Laces, cfg.Ifactor)
	return nil
}

func runJointDecode(cfg xconfig.Config, logger interface {
	Infof(string, ...interface{})
}) error {
	in, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	outPath := strings.TrimSuffix(cfg.Input, ".xpa")
	out, err := openOutput(cfg, outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	stats, err := driver.DecodeJoint(in, out, cfg.Force, cfg.Workers, func(e error) {
		xlog.Warn("%v", e)
	})
	if err != nil {
		return err
	}
	logger.Infof("decoded %d laces, corrected %d symbols, %d forced recoveries", stats.Laces, stats.Corrected, stats.ForcedErrors)
	return nil
}

func runShardedEncode(cfg xconfig.Config, logger interface {
	Infof(string, ...interface{})
}) error {
	in, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	shards, err := driver.EncodeSharded(in, cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return err
	}

	prefix := cfg.Output
	if prefix == "" {
		prefix = cfg.Input
	}
	for _, s := range shards {
		path := fmt.Sprintf("%s.xpa.%03d", prefix, s.Index)
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if !cfg.Force {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(path, flags, 0644)
		if err != nil {
			return err
		}
		_, werr := f.Write(s.Bytes)
		cerr := f.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
	}
	logger.Infof("wrote %d shards (%d data, %d parity)", len(shards), cfg.DataShards, cfg.ParityShards)
	return nil
}

func runShardedDecode(cfg xconfig.Config, shardPaths []string, logger interface {
	Infof(string, ...interface{})
}) error {
	if len(shardPaths) == 0 {
		return cli.NewExitError("xpar: sharded decode requires one or more shard paths", 1)
	}

	readers := make([]io.Reader, 0, len(shardPaths))
	closers := make([]io.Closer, 0, len(shardPaths))
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for _, p := range shardPaths {
		f, err := os.Open(p)
		if err != nil {
			xlog.Warn("skipping unreadable shard %s: %v", p, err)
			continue
		}
		readers = append(readers, f)
		closers = append(closers, f)
	}

	out, err := openOutput(cfg, cfg.Input)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := driver.DecodeSharded(readers, out, func(e error) {
		xlog.Warn("%v", e)
	}); err != nil {
		return err
	}
	logger.Infof("reconstructed output from %d shards", len(readers))
	return nil
}
