// Command cached is a standalone demo harness for the page cache: it
// opens a disk-backed node, drives a fixed mix of reads and writes
// (for a configurable number of rounds) through fs.AccessCache, and
// optionally captures a CPU profile
// of the run.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/pprof/profile"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"fs"
	"fsnode"
	"ustr"

	"runtime/pprof"
)

func main() {
	var (
		diskPath    = pflag.String("disk", "cached.img", "path to the backing disk file")
		fileSize    = pflag.Int64("size", 64<<20, "backing file size in bytes")
		slots       = pflag.Int("slots", 0, "ASP slot count (0 = package default)")
		maxModified = pflag.Int("max-modified", 0, "modified-list bound (0 = limits.Syslimit default)")
		wbDelay     = pflag.Duration("write-behind-delay", 0, "write-behind defer window (0 = package default)")
		rounds      = pflag.Int("rounds", 4096, "number of Access calls to drive")
		pprofOut    = pflag.String("pprof", "", "write a CPU profile to this path and summarize it on exit")
		verbose     = pflag.Bool("v", false, "enable debug-level logging")
	)
	pflag.Parse()

	logLevel := zerolog.InfoLevel
	if *verbose {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(logLevel).With().Timestamp().Logger()

	if *pprofOut != "" {
		f, err := os.Create(*pprofOut)
		if err != nil {
			log.Fatal().Err(err).Msg("cached: create profile file")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("cached: start CPU profile")
		}
		defer func() {
			pprof.StopCPUProfile()
			summarizeProfile(log, *pprofOut)
		}()
	}

	cfg := fs.DefaultPoolConfig()
	cfg.Logger = log
	if *slots > 0 {
		cfg.Slots = *slots
	}
	if *maxModified > 0 {
		cfg.MaxModified = *maxModified
	}
	if *wbDelay > 0 {
		cfg.WriteBehindDelay = *wbDelay
	}
	pool := fs.InitCache(cfg)

	registry := fsnode.NewRegistry(pool, log)
	node, err := registry.Open(1, ustr.MkUstrSlice([]byte(*diskPath)), *diskPath, *fileSize)
	if err != nil {
		log.Fatal().Err(err).Str("disk", *diskPath).Msg("cached: open backing node")
	}
	defer registry.Close(node.Ino)

	if err := run(node, *rounds, log); err != nil {
		log.Fatal().Err(err).Msg("cached: run failed")
	}
	log.Info().Int("rounds", *rounds).Msg("cached: run complete")
}

// run drives a deterministic, small-footprint mix of WRITE then READ
// accesses across node's cache so a CPU profile has something to
// attribute time to in both the access path and the write-behind
// worker.
func run(node *fsnode.Node, rounds int, log zerolog.Logger) error {
	const span = 4096
	page := make([]byte, span)
	for i := range page {
		page[i] = byte(i)
	}
	for i := 0; i < rounds; i++ {
		off := int64((i % 256)) * span
		if err := fs.AccessCache(context.Background(), node.Cache, page, off, span, fs.WRITE, nil); err != nil {
			return errors.Wrapf(err, "round %d: write at %d", i, off)
		}
		readBuf := make([]byte, span)
		if err := fs.AccessCache(context.Background(), node.Cache, readBuf, off, span, fs.READ, nil); err != nil {
			return errors.Wrapf(err, "round %d: read at %d", i, off)
		}
		if i%512 == 0 {
			log.Debug().Int("round", i).Msg("cached: progress")
		}
	}
	return nil
}

// summarizeProfile reopens the CPU profile just written and logs its
// sample count and duration, the smallest useful thing
// github.com/google/pprof/profile can tell a caller without spawning
// the interactive pprof UI.
func summarizeProfile(log zerolog.Logger, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Msg("cached: reopen profile")
		return
	}
	defer f.Close()

	p, err := profile.Parse(f)
	if err != nil {
		log.Error().Err(err).Msg("cached: parse profile")
		return
	}
	dur := time.Duration(p.DurationNanos)
	log.Info().
		Int("samples", len(p.Sample)).
		Str("duration", dur.String()).
		Str("path", path).
		Msg("cached: profile written")
	fmt.Fprintf(os.Stderr, "wrote %d samples over %s to %s\n", len(p.Sample), dur, path)
}
