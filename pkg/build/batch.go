package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/manifest"
)

// ErrOutdated is reported by a check build when at least one output differs
// from what the compiler generates.
var ErrOutdated = errors.New("compiled output is out of date")

// ErrOutputConflict is reported for an entry whose output path is already
// taken by another entry of the same build.
var ErrOutputConflict = errors.New("output path conflict")

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// RootPath is the directory output paths are made relative to.
	RootPath string

	// OutputDir receives the generated modules.
	OutputDir string

	// Extension replaces the template extension of each entry.
	Extension string

	// Workers bounds the number of concurrent compilations.
	Workers int

	// FailFast cancels the remaining entries after the first failure.
	FailFast bool

	// Check compares the generated code with the existing outputs instead
	// of writing them.
	Check bool

	// Clean removes OutputDir before building.
	Clean bool

	// OnResult, when set, is called as each entry finishes. It may be
	// called from several goroutines at once.
	OnResult func(*EntryResult)
}

// EntryResult is the outcome of one entry of a batch build.
type EntryResult struct {
	Entry   string  `json:"entry"`
	Output  string  `json:"output"`
	Result  *Result `json:"result,omitempty"`
	Changed bool    `json:"changed"`
	Diff    string  `json:"diff,omitempty"`
	Err     error   `json:"-"`
}

// MarshalJSON includes the error message.
func (r *EntryResult) MarshalJSON() ([]byte, error) {
	type plain EntryResult
	var msg string
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return json.Marshal(struct {
		*plain
		Error string `json:"error,omitempty"`
	}{(*plain)(r), msg})
}

// Report is the outcome of a batch build, one result per entry in input
// order.
type Report struct {
	Results  []*EntryResult `json:"results"`
	Duration time.Duration  `json:"duration"`
	Check    bool           `json:"check"`
}

// Failed returns the entries that did not compile.
func (r *Report) Failed() []*EntryResult {
	var failed []*EntryResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Changed returns the entries whose output changed, or would change in a
// check build.
func (r *Report) Changed() []*EntryResult {
	var changed []*EntryResult
	for _, res := range r.Results {
		if res.Err == nil && res.Changed {
			changed = append(changed, res)
		}
	}
	return changed
}

// Err joins the entry errors. A check build with changed outputs reports
// ErrOutdated.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	if r.Check && len(r.Changed()) > 0 {
		errs = append(errs, ErrOutdated)
	}
	return errors.Join(errs...)
}

// Builder compiles many entries and writes their modules to disk.
type Builder struct {
	compiler *Compiler
	store    manifest.Store
	opts     BuilderOptions
	logger   *slog.Logger
}

// NewBuilder creates a builder. store may be nil, in which case nothing is
// recorded.
func NewBuilder(compiler *Compiler, store manifest.Store, opts BuilderOptions, logger *slog.Logger) *Builder {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Extension == "" {
		opts.Extension = ".js"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		compiler: compiler,
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "build.builder"),
	}
}

// Compiler returns the compiler used by the builder.
func (b *Builder) Compiler() *Compiler {
	return b.compiler
}

// Build compiles entries on a bounded worker pool. Entry failures are
// reported in the Report; the returned error is only set when the build
// itself could not run.
func (b *Builder) Build(ctx context.Context, entries []string) (*Report, error) {
	start := time.Now()
	report := &Report{
		Results: make([]*EntryResult, len(entries)),
		Check:   b.opts.Check,
	}

	if b.opts.Clean && !b.opts.Check {
		if err := os.RemoveAll(b.opts.OutputDir); err != nil {
			return nil, fmt.Errorf("failed to clean output directory: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	claimed := make(map[string]string, len(entries))
	for i, entry := range entries {
		if err := gctx.Err(); err != nil {
			report.Results[i] = &EntryResult{Entry: keys.Normalize(entry), Err: err}
			continue
		}
		if output, err := b.OutputPath(entry); err == nil {
			if other, ok := claimed[output]; ok {
				report.Results[i] = &EntryResult{
					Entry:  keys.Normalize(entry),
					Output: output,
					Err:    fmt.Errorf("%w: %s is also written by %s", ErrOutputConflict, output, other),
				}
				if b.opts.OnResult != nil {
					b.opts.OnResult(report.Results[i])
				}
				continue
			}
			claimed[output] = keys.Normalize(entry)
		}
		i, entry := i, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Results[i] = &EntryResult{Entry: keys.Normalize(entry), Err: err}
				return nil
			}
			res := b.BuildEntry(gctx, entry)
			report.Results[i] = res
			if b.opts.OnResult != nil {
				b.opts.OnResult(res)
			}
			if res.Err != nil && b.opts.FailFast {
				return res.Err
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	b.logger.InfoContext(ctx, "build finished",
		"entries", len(entries),
		"failed", len(report.Failed()),
		"changed", len(report.Changed()),
		"duration", report.Duration)

	return report, ctx.Err()
}

// BuildEntry compiles a single entry, writes its output and records it in
// the manifest.
func (b *Builder) BuildEntry(ctx context.Context, entry string) *EntryResult {
	res := &EntryResult{Entry: keys.Normalize(entry)}

	output, err := b.OutputPath(entry)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = output

	source, err := os.ReadFile(entry)
	if err != nil {
		res.Err = fmt.Errorf("failed to read entry %s: %w", entry, err)
		return res
	}

	host := NewRecordingHost(entry)
	result, err := b.compiler.Compile(ctx, host, string(source))
	if err != nil {
		res.Err = err
		return res
	}
	res.Result = result

	existing, err := os.ReadFile(output)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		res.Err = fmt.Errorf("failed to read output %s: %w", output, err)
		return res
	}
	res.Changed = err != nil || !bytes.Equal(existing, []byte(result.Code))

	if b.opts.Check {
		if res.Changed {
			res.Diff = LineDiff(string(existing), result.Code)
		}
		return res
	}

	if res.Changed {
		if err := writeFile(output, result.Code); err != nil {
			res.Err = err
			return res
		}
	}

	if b.store != nil {
		if err := b.store.Record(ctx, b.manifestEntry(result, output)); err != nil {
			res.Err = fmt.Errorf("failed to record %s: %w", res.Entry, err)
		}
	}
	return res
}

func (b *Builder) manifestEntry(result *Result, output string) *manifest.Entry {
	return &manifest.Entry{
		ResourcePath:  result.Entry,
		Key:           result.Key,
		Mode:          result.Mode.String(),
		KeyMode:       b.compiler.KeyMode().String(),
		OutputPath:    keys.Normalize(output),
		Dependencies:  result.Dependencies,
		CompilationID: result.CompilationID,
		Duration:      result.Duration,
		CompiledAt:    time.Now(),
	}
}

// OutputPath returns where the module of entry is written: the path of
// entry relative to the root, under the output directory, with the
// template extension replaced. Entries outside the root keep their base
// name only.
func (b *Builder) OutputPath(entry string) (string, error) {
	root, err := filepath.Abs(b.opts.RootPath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(entry)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(abs)
	}
	rel = strings.TrimSuffix(rel, ".twig") + b.opts.Extension
	return filepath.Join(b.opts.OutputDir, rel), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	tmp := f.Name()
	_, err = f.WriteString(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LineDiff renders a line based diff of two texts, prefixing removed lines
// with "-" and added lines with "+". Unchanged lines are omitted.
func LineDiff(from, to string) string {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffpatch.DiffInsert:
			prefix = "+"
		case diffpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// ResolveEntries expands patterns relative to root into a sorted,
// deduplicated list of absolute entry paths. Patterns support "**". A
// pattern without glob metacharacters must name an existing file.
func ResolveEntries(root string, patterns []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var entries []string
	add := func(path string) {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		entries = append(entries, path)
	}

	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(absRoot, pattern)
		}
		if !hasMeta(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("entry %s: %w", pattern, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("entry %s is a directory", pattern)
			}
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid entry pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	sort.Strings(entries)
	return entries, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
