package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/memarchive"
	"github.com/meigma/memarchive/cache"
	"github.com/meigma/memarchive/cache/disk"
	"github.com/meigma/memarchive/cache/memory"
)

type config struct {
	verbose  bool
	list     bool
	failFast bool
	jsonLogs bool
	exts     []string
	cacheMax int64
	cacheDir string
}

// report is the outcome of verifying one archive.
type report struct {
	path       string
	digest     string
	entries    int
	duplicates int
	err        error
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:   "memverify [paths...]",
		Short: "Verify JAR and ZIP archives by loading them from memory",
		Long: `memverify reads each archive into memory, registers it, and indexes it the
way a memarchive Resolver does: local headers and the central directory must
agree, and every entry must decode to its recorded size and CRC-32.

Directories are walked recursively for files with the configured extensions.
With no arguments the current directory is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			return run(cfg, args, cmd.OutOrStdout(), newLogger(cfg, stderr))
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&cfg.list, "list", false, "Print the resource URL of every entry")
	flags.BoolVar(&cfg.failFast, "fail-fast", false, "Stop at the first archive that fails")
	flags.BoolVar(&cfg.jsonLogs, "json", false, "Log in JSON format")
	flags.StringSliceVar(&cfg.exts, "ext", []string{".jar", ".zip"}, "File extensions to verify when walking directories")
	flags.Int64Var(&cfg.cacheMax, "cache-bytes", 0, "Cache decoded entries in memory up to this many bytes, or bound --cache-dir")
	flags.StringVar(&cfg.cacheDir, "cache-dir", "", "Cache decoded entries on disk under this directory")
	return cmd
}

func newLogger(cfg *config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if cfg.verbose {
		opts.Level = slog.LevelDebug
	}
	if cfg.jsonLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(cfg *config, args []string, out io.Writer, logger *slog.Logger) error {
	paths, err := collect(args, cfg.exts)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no archives found")
	}

	reg := memarchive.NewRegistry(memarchive.WithRegistryLogger(logger))
	var opts []memarchive.ResolverOption
	opts = append(opts, memarchive.WithLogger(logger))
	c, err := newCache(cfg)
	if err != nil {
		return err
	}
	if c != nil {
		opts = append(opts, memarchive.WithCache(c))
	}

	failed := 0
	for _, path := range paths {
		rep := verify(reg, path, cfg.list, out, opts...)
		if rep.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", rep.path, rep.err)
			logger.Debug("archive failed", slog.String("path", rep.path), slog.Any("error", rep.err))
			if cfg.failFast {
				break
			}
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d entries, %d duplicates, %s)\n", rep.path, rep.entries, rep.duplicates, rep.digest)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed verification", failed, len(paths))
	}
	return nil
}

// newCache returns the configured entry cache, or nil when caching is off.
func newCache(cfg *config) (cache.Cache, error) {
	switch {
	case cfg.cacheDir != "":
		return disk.New(cfg.cacheDir, disk.WithMaxBytes(max(cfg.cacheMax, 0)))
	case cfg.cacheMax > 0:
		return memory.New(memory.WithMaxBytes(cfg.cacheMax))
	default:
		return nil, nil
	}
}

// verify loads one archive and decodes every entry in it.
func verify(reg *memarchive.Registry, path string, list bool, out io.Writer, opts ...memarchive.ResolverOption) report {
	rep := report{path: path}
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the command line
	if err != nil {
		rep.err = err
		return rep
	}

	h, err := reg.Register(path, data)
	if err != nil {
		rep.err = err
		return rep
	}
	rep.digest = h.Archive().Digest().String()

	res, err := memarchive.NewResolver([]*memarchive.Handle{h}, opts...)
	if err != nil {
		rep.err = err
		return rep
	}

	names := res.Names()
	for _, name := range names {
		e, _, _ := res.Entry(name)
		if !e.IsDir() {
			if _, err := res.ReadResource(name); err != nil {
				rep.err = err
				return rep
			}
		}
		if list {
			fmt.Fprintln(out, h.Archive().ResourceURL(name))
		}
	}
	rep.entries = len(names)
	rep.duplicates = duplicates(res)
	return rep
}

// duplicates sums ignored duplicate records over the bound archives.
func duplicates(res *memarchive.Resolver) int {
	n := 0
	for _, a := range res.Archives() {
		n += res.Duplicates(a)
	}
	return n
}

// collect expands args into absolute archive paths. Files named directly are
// always included; directories contribute files whose extension matches exts.
func collect(args, exts []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && hasExt(p, exts) {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}
