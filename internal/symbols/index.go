package symbols

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/logging"
)

// ErrWorkspace is returned when the workspace root is missing or not a
// directory.
var ErrWorkspace = errors.New("invalid workspace")

// Options controls which files an indexing pass visits.
type Options struct {
	// Globs are doublestar patterns relative to the workspace root.
	Globs []string
	// Ignore patterns are matched against the same relative paths.
	Ignore []string
	// Concurrency bounds parallel parsing. Zero means GOMAXPROCS.
	Concurrency int
}

// Builder builds an Index for a workspace.
type Builder struct {
	opts    Options
	logger  *log.Logger
	extract func(ctx context.Context, path string, src []byte) ([]Descriptor, error)
}

// NewBuilder returns a Builder with the given options.
func NewBuilder(opts Options) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Builder{
		opts:    opts,
		logger:  logging.New(logging.ComponentSymbols),
		extract: ExtractFile,
	}
}

// fileResult is what one worker produces for one file.
type fileResult struct {
	decls  []Descriptor
	digest uint64
}

// Build indexes the workspace at root. Files are parsed in parallel but the
// resulting index lists symbols in glob order, so repeated builds over the
// same tree are identical. A file that fails to parse is logged and skipped;
// a file that cannot be read fails the whole pass.
func (b *Builder) Build(ctx context.Context, root string) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("symbols: resolving %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w: %w", ErrWorkspace, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("symbols: %w: %s is not a directory", ErrWorkspace, absRoot)
	}

	files, err := discover(os.DirFS(absRoot), b.opts.Globs, b.opts.Ignore)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	b.logger.Debug("discovered source files", "root", absRoot, "count", len(files))

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)

	for i, rel := range files {
		g.Go(func() error {
			abs := filepath.Join(absRoot, filepath.FromSlash(rel))
			src, err := os.ReadFile(abs)
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			results[i].digest = xxhash.Sum64(src)

			decls, err := b.extract(gctx, abs, src)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				b.logger.Debug("skipping unparsable file", "file", rel, "error", err)
				return nil
			}
			results[i].decls = decls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}

	idx := &Index{Files: len(files)}
	hasher := xxhash.New()
	var buf [8]byte
	for i, res := range results {
		_, _ = hasher.WriteString(files[i])
		binary.LittleEndian.PutUint64(buf[:], res.digest)
		_, _ = hasher.Write(buf[:])

		for _, d := range res.decls {
			switch d.Kind {
			case KindInterface:
				idx.Interfaces = append(idx.Interfaces, d)
			case KindClass:
				idx.Classes = append(idx.Classes, d)
			}
		}
	}
	idx.Fingerprint = strconv.FormatUint(hasher.Sum64(), 16)

	b.logger.Info("indexed workspace",
		"files", idx.Files,
		"interfaces", len(idx.Interfaces),
		"classes", len(idx.Classes),
		"fingerprint", idx.Fingerprint,
	)
	return idx, nil
}

// Build is a convenience wrapper around NewBuilder(opts).Build.
func Build(ctx context.Context, root string, opts Options) (*Index, error) {
	return NewBuilder(opts).Build(ctx, root)
}

// discover expands globs against fsys and returns unique slash-separated
// paths in first-seen order, skipping anything matched by ignore.
func discover(fsys fs.FS, globs, ignore []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range globs {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || ignored(m, ignore) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

func ignored(path string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
