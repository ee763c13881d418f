// # internal/graph/tracker.go
package graph

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"sonarfix/internal/observability"
	"sonarfix/internal/parser"
	"sonarfix/internal/resolver"
)

// ErrBuildCanceled reports a project build cut short by context
// cancellation. Nothing from the aborted build is published.
var ErrBuildCanceled = errors.New("project build canceled")

// Tracker holds the project-wide dependency state: every parsed file
// model, the class index, and usage edges in both directions. All
// state is explicit; a second Tracker over another project tree is
// fully independent.
type Tracker struct {
	mu sync.RWMutex

	parser  *parser.Parser
	logger  *slog.Logger
	exclude []glob.Glob
	workers int

	root       string
	files      map[string]*parser.SourceFile // abs path -> model
	classIndex map[string]string             // qualified type name -> declaring path
	uses       map[string]map[string]bool    // path -> paths it depends on
	usedBy     map[string]map[string]bool    // path -> paths depending on it
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithExcludes installs glob patterns matched against the
// slash-separated path relative to the build root.
func WithExcludes(patterns []string) Option {
	return func(t *Tracker) {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				t.logger.Warn("invalid exclude pattern", "pattern", p, "error", err)
				continue
			}
			t.exclude = append(t.exclude, g)
		}
	}
}

func WithWorkers(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.workers = n
		}
	}
}

func NewTracker(p *parser.Parser, opts ...Option) *Tracker {
	t := &Tracker{
		parser:     p,
		logger:     slog.Default(),
		workers:    runtime.NumCPU(),
		files:      make(map[string]*parser.SourceFile),
		classIndex: make(map[string]string),
		uses:       make(map[string]map[string]bool),
		usedBy:     make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BuildProject walks root for Java sources, parses them on a bounded
// worker pool, and derives the usage edges. The build assembles into
// private state and publishes atomically at the end; a canceled
// context discards everything and returns ErrBuildCanceled, leaving
// any previously published graph untouched.
func (t *Tracker) BuildProject(ctx context.Context, root string) error {
	ctx, span := observability.Tracer.Start(ctx, "tracker.BuildProject")
	defer span.End()

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	paths, err := t.collectSources(abs)
	if err != nil {
		return err
	}

	files, err := t.parseAll(ctx, paths)
	if err != nil {
		return err
	}

	classIndex := t.buildClassIndex(files)
	uses, usedBy := t.buildEdges(files, classIndex)

	if ctx.Err() != nil {
		return ErrBuildCanceled
	}

	t.mu.Lock()
	t.root = abs
	t.files = files
	t.classIndex = classIndex
	t.uses = uses
	t.usedBy = usedBy
	t.publishGaugesLocked()
	t.mu.Unlock()

	t.logger.Info("project graph built",
		"root", abs, "files", len(files), "classes", len(classIndex))
	return nil
}

func (t *Tracker) collectSources(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if t.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".java" || t.excluded(rel) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (t *Tracker) excluded(rel string) bool {
	if rel == "." {
		return false
	}
	for _, g := range t.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (t *Tracker) parseAll(ctx context.Context, paths []string) (map[string]*parser.SourceFile, error) {
	jobs := make(chan string)
	results := make(chan *parser.SourceFile)

	var wg sync.WaitGroup
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if file := t.parseOne(path); file != nil {
					select {
					case results <- file:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make(map[string]*parser.SourceFile, len(paths))
	for file := range results {
		files[file.Path] = file
	}

	if ctx.Err() != nil {
		return nil, ErrBuildCanceled
	}
	return files, nil
}

func (t *Tracker) parseOne(path string) *parser.SourceFile {
	content, err := os.ReadFile(path)
	if err != nil {
		t.logger.Warn("read failed", "path", path, "error", err)
		return nil
	}

	start := time.Now()
	file, err := t.parser.ParseFile(path, content)
	observability.ParsingDuration.WithLabelValues("java").Observe(time.Since(start).Seconds())
	if err != nil {
		t.logger.Warn("parse skipped", "path", path, "error", err)
		return nil
	}
	if file.Degraded() {
		t.logger.Warn("degraded model", "path", path, "reason", file.Failure.Reason)
	}
	return file
}

// buildClassIndex maps every declared qualified name to its file.
// Iteration is path-sorted, so on a collision the first writer wins
// deterministically.
func (t *Tracker) buildClassIndex(files map[string]*parser.SourceFile) map[string]string {
	index := make(map[string]string)
	for _, path := range sortedPaths(files) {
		for fqn := range files[path].Types {
			if prior, taken := index[fqn]; taken {
				t.logger.Warn("type name collision",
					"type", fqn, "kept", prior, "ignored", path)
				continue
			}
			index[fqn] = path
		}
	}
	return index
}

func (t *Tracker) buildEdges(files map[string]*parser.SourceFile, classIndex map[string]string) (map[string]map[string]bool, map[string]map[string]bool) {
	known := make(map[string]bool, len(classIndex))
	for fqn := range classIndex {
		known[fqn] = true
	}

	uses := make(map[string]map[string]bool, len(files))
	usedBy := make(map[string]map[string]bool, len(files))

	for path, file := range files {
		deps := dependenciesOf(file, resolver.NewResolver(file, known), classIndex)
		delete(deps, path)
		uses[path] = deps
		for dep := range deps {
			if usedBy[dep] == nil {
				usedBy[dep] = make(map[string]bool)
			}
			usedBy[dep][path] = true
		}
	}
	return uses, usedBy
}

// dependenciesOf collects every file whose declared types this file
// references: imports, supertypes, field and variable types, method
// signatures, and resolvable call receivers.
func dependenciesOf(file *parser.SourceFile, r *resolver.Resolver, classIndex map[string]string) map[string]bool {
	deps := make(map[string]bool)
	addType := func(name string) {
		if name == "" {
			return
		}
		if path, ok := classIndex[r.Base(name)]; ok {
			deps[path] = true
		}
	}

	for _, imp := range file.Imports {
		if imp.Static {
			continue
		}
		if imp.Wildcard {
			// pkg.* links the file to every declaration under pkg
			prefix := imp.Path + "."
			for fqn, declaring := range classIndex {
				if strings.HasPrefix(fqn, prefix) {
					deps[declaring] = true
				}
			}
			continue
		}
		if path, ok := classIndex[imp.Path]; ok {
			deps[path] = true
		}
	}

	for _, decl := range file.Types {
		addType(decl.Parent)
		for _, iface := range decl.Interfaces {
			addType(iface)
		}
		for _, field := range decl.Fields {
			addType(field.Type)
		}
		for _, method := range decl.Methods {
			addType(method.ReturnType)
			for _, p := range method.Params {
				addType(p.Type)
			}
			for _, v := range method.Variables {
				addType(v.Type)
			}
			for _, call := range method.Calls {
				if call.Receiver == "" {
					continue
				}
				// receiver is a variable when the method declares it,
				// otherwise treated as a type for static calls
				if v, ok := method.Variable(call.Receiver); ok {
					addType(v.Type)
				} else {
					addType(call.Receiver)
				}
			}
		}
	}
	return deps
}

// UpdateFile re-parses one file and rebuilds the derived edges. Used
// by the watcher on change events; the heavy parse happens outside
// the lock.
func (t *Tracker) UpdateFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	file := t.parseOne(abs)
	if file == nil {
		return errors.New("file not parseable: " + abs)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[abs] = file
	t.rebuildDerivedLocked()
	return nil
}

// RemoveFile drops a file and everything derived from it.
func (t *Tracker) RemoveFile(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.files[abs]; !ok {
		return
	}
	delete(t.files, abs)
	t.rebuildDerivedLocked()
}

func (t *Tracker) rebuildDerivedLocked() {
	t.classIndex = t.buildClassIndex(t.files)
	t.uses, t.usedBy = t.buildEdges(t.files, t.classIndex)
	t.publishGaugesLocked()
}

func (t *Tracker) publishGaugesLocked() {
	observability.GraphFiles.Set(float64(len(t.files)))
	degraded := 0
	edges := 0
	for _, file := range t.files {
		if file.Degraded() {
			degraded++
		}
	}
	for _, targets := range t.uses {
		edges += len(targets)
	}
	observability.GraphDegradedFiles.Set(float64(degraded))
	observability.GraphEdges.Set(float64(edges))
}

// File returns the model for path. The model is read-only after the
// build; callers must not mutate it.
func (t *Tracker) File(path string) (*parser.SourceFile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.files[path]
	return f, ok
}

func (t *Tracker) FileCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

func (t *Tracker) DegradedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, f := range t.files {
		if f.Degraded() {
			n++
		}
	}
	return n
}

// Files lists every tracked path, sorted.
func (t *Tracker) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedPaths(t.files)
}

// Lookup maps a fully qualified type name to its declaring file.
func (t *Tracker) Lookup(fqn string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	path, ok := t.classIndex[fqn]
	return path, ok
}

// LookupSimple resolves a simple class name against the index. It
// returns the single match, or "" when the name is absent or
// ambiguous across packages.
func (t *Tracker) LookupSimple(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	suffix := "." + name
	found := ""
	for fqn, path := range t.classIndex {
		if fqn != name && !strings.HasSuffix(fqn, suffix) {
			continue
		}
		if found != "" && found != path {
			return "", false
		}
		found = path
	}
	return found, found != ""
}

// Dependencies returns the files path directly depends on, sorted.
func (t *Tracker) Dependencies(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedSet(t.uses[path])
}

// Dependents returns the files directly depending on path, sorted.
func (t *Tracker) Dependents(path string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedSet(t.usedBy[path])
}

func sortedPaths(files map[string]*parser.SourceFile) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
