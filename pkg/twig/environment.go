package twig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mercator-hq/twigpack/pkg/twig/ast"
	"mercator-hq/twigpack/pkg/twig/codegen"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
	"mercator-hq/twigpack/pkg/twig/loader"
	"mercator-hq/twigpack/pkg/twig/parser"
)

// DefaultMaxNestingLevel bounds template recursion through include, embed,
// extends and macro calls.
const DefaultMaxNestingLevel = 100

// TemplateListener is notified every time the environment loads a template by
// name. from is the template the lookup was made on behalf of, nil for top
// level renders.
type TemplateListener func(ctx context.Context, name string, from *loader.Source)

// Environment is the rendering environment. It is safe for concurrent use.
type Environment struct {
	mu     sync.RWMutex
	loader loader.Loader
	parser *parser.Parser
	logger *slog.Logger

	autoescape      string
	strictVariables bool
	maxNesting      int
	globals         map[string]any

	filters   map[string]FilterFunc
	functions map[string]FunctionFunc
	tests     map[string]TestFunc

	listeners []TemplateListener
	registry  map[string]*ast.Tree
	templates map[string]*Template
}

// Option configures an Environment.
type Option func(*Environment)

// WithAutoescape sets the default escaping strategy. An empty strategy
// disables autoescaping.
func WithAutoescape(strategy string) Option {
	return func(e *Environment) {
		e.autoescape = strategy
	}
}

// WithStrictVariables makes access to undefined variables and attributes a
// runtime error.
func WithStrictVariables(strict bool) Option {
	return func(e *Environment) {
		e.strictVariables = strict
	}
}

// WithGlobals adds variables visible to every template.
func WithGlobals(globals map[string]any) Option {
	return func(e *Environment) {
		for k, v := range globals {
			e.globals[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Environment) {
		e.logger = logger
	}
}

// WithParser replaces the default parser.
func WithParser(p *parser.Parser) Option {
	return func(e *Environment) {
		e.parser = p
	}
}

// WithMaxNestingLevel bounds template recursion.
func WithMaxNestingLevel(level int) Option {
	return func(e *Environment) {
		e.maxNesting = level
	}
}

// NewEnvironment creates an environment reading templates from l. A nil
// loader is replaced by an empty in-memory loader.
func NewEnvironment(l loader.Loader, opts ...Option) *Environment {
	if l == nil {
		l = loader.NewArrayLoader(nil)
	}
	e := &Environment{
		loader:     l,
		parser:     parser.NewParser(),
		autoescape: EscapeHTML,
		maxNesting: DefaultMaxNestingLevel,
		globals:    make(map[string]any),
		filters:    builtinFilters(),
		functions:  builtinFunctions(),
		tests:      builtinTests(),
		registry:   make(map[string]*ast.Tree),
		templates:  make(map[string]*Template),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "twig.environment")
	}
	return e
}

// Loader returns the current loader.
func (e *Environment) Loader() loader.Loader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loader
}

// SetLoader replaces the loader and drops every template loaded through the
// previous one.
func (e *Environment) SetLoader(l loader.Loader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loader = l
	clear(e.templates)
}

// OnTemplate registers a listener for template loads.
func (e *Environment) OnTemplate(listener TemplateListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
}

// AddGlobal adds a variable visible to every template.
func (e *Environment) AddGlobal(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = value
}

// AddFilter registers a filter, replacing any existing one with that name.
func (e *Environment) AddFilter(name string, fn FilterFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters[name] = fn
}

// AddFunction registers a function.
func (e *Environment) AddFunction(name string, fn FunctionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.functions[name] = fn
}

// AddTest registers a test.
func (e *Environment) AddTest(name string, fn TestFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tests[name] = fn
}

// Tokenize converts source into a token stream.
func (e *Environment) Tokenize(source *loader.Source) (*parser.TokenStream, error) {
	return parser.Tokenize(source)
}

// Parse builds the tree for a token stream.
func (e *Environment) Parse(stream *parser.TokenStream) (*ast.Tree, error) {
	return e.parser.Parse(stream)
}

// Compile generates the module code for a tree.
func (e *Environment) Compile(tree *ast.Tree) (string, error) {
	return codegen.Compile(tree)
}

// RegisterTemplatesModule makes tree loadable under key. Registered modules
// take precedence over the loader, so references rewritten to keys resolve
// against the registry.
func (e *Environment) RegisterTemplatesModule(tree *ast.Tree, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[key] = tree
	delete(e.templates, registryCacheKey(key))
}

// CreateTemplate parses source into a template without going through the
// loader.
func (e *Environment) CreateTemplate(source *loader.Source) (*Template, error) {
	stream, err := e.Tokenize(source)
	if err != nil {
		return nil, err
	}
	tree, err := e.Parse(stream)
	if err != nil {
		return nil, err
	}
	return newTemplate(e, tree, tree.Root, source), nil
}

// LoadTemplate returns the template registered or loadable under name, as
// seen from the template from.
func (e *Environment) LoadTemplate(ctx context.Context, name string, from *loader.Source) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.notify(ctx, name, from)

	e.mu.RLock()
	tree, registered := e.registry[name]
	cached, ok := e.templates[registryCacheKey(name)]
	l := e.loader
	e.mu.RUnlock()

	if registered {
		if ok {
			return cached, nil
		}
		tmpl := newTemplate(e, tree, tree.Root, loader.NewSource("", name, ""))
		e.store(registryCacheKey(name), tmpl)
		return tmpl, nil
	}

	resolved, err := l.Resolve(ctx, name, from)
	if err != nil {
		return nil, e.loaderError(name, from, err)
	}

	e.mu.RLock()
	cached, ok = e.templates[resolved]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	source, err := l.GetSource(ctx, name, from)
	if err != nil {
		return nil, e.loaderError(name, from, err)
	}
	tmpl, err := e.CreateTemplate(source)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("template loaded", "name", name, "resolved", resolved)
	e.store(resolved, tmpl)
	return tmpl, nil
}

// Render loads name and renders it with vars.
func (e *Environment) Render(ctx context.Context, name string, vars map[string]any) (string, error) {
	tmpl, err := e.LoadTemplate(ctx, name, nil)
	if err != nil {
		return "", err
	}
	return tmpl.Render(ctx, vars)
}

// Filters returns the names of the registered filters.
func (e *Environment) Filters() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.filters)
}

// Functions returns the names of the registered functions.
func (e *Environment) Functions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.functions)
}

// Tests returns the names of the registered tests.
func (e *Environment) Tests() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedKeys(e.tests)
}

func (e *Environment) notify(ctx context.Context, name string, from *loader.Source) {
	e.mu.RLock()
	listeners := append([]TemplateListener(nil), e.listeners...)
	e.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, name, from)
	}
}

func (e *Environment) store(key string, tmpl *Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[key] = tmpl
}

func (e *Environment) loaderError(name string, from *loader.Source, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var loc ast.Location
	if from != nil {
		loc.File = from.Name
	}
	if errors.Is(err, loader.ErrNotFound) {
		return twigerrors.Loader(loc, err, "Unable to find template %q", name)
	}
	return twigerrors.Loader(loc, err, "Unable to load template %q", name)
}

func (e *Environment) snapshotGlobals() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	vars := make(map[string]any, len(e.globals))
	for k, v := range e.globals {
		vars[k] = v
	}
	return vars
}

func (e *Environment) filter(name string) (FilterFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.filters[name]
	return fn, ok
}

func (e *Environment) function(name string) (FunctionFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.functions[name]
	return fn, ok
}

func (e *Environment) test(name string) (TestFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.tests[name]
	return fn, ok
}

func registryCacheKey(key string) string {
	return fmt.Sprintf("registry:%s", key)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
