package build

import (
	"context"
	"fmt"
	"strings"

	"mercator-hq/twigpack/pkg/discovery"
	"mercator-hq/twigpack/pkg/keys"
	"mercator-hq/twigpack/pkg/telemetry/tracing"
	"mercator-hq/twigpack/pkg/twig/ast"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// Strategy produces the module code of one compilation.
type Strategy interface {
	// Mode returns the mode the strategy implements.
	Mode() Mode

	// Compile returns the generated module. Errors are *CompileError values.
	Compile(ctx context.Context, c *compilation) (string, error)
}

// precompile discovers references statically and emits a module that
// registers the rewritten tree.
type precompile struct{}

func (*precompile) Mode() Mode { return ModePrecompile }

func (p *precompile) Compile(ctx context.Context, c *compilation) (string, error) {
	tree, err := c.parse(ctx)
	if err != nil {
		return "", err
	}

	found, err := c.discover(ctx, tree)
	if err != nil {
		return "", err
	}
	for _, dep := range found {
		c.host.AddDependency(dep)
	}

	_, span := c.startSpan(ctx, tracing.SpanCodegen)
	compiled, err := c.env.Compile(tree)
	tracing.End(span, err)
	if err != nil {
		return "", c.fail(PhaseCodegen, err)
	}

	return precompiledModule(c.compiler.modulePath, compiled, found, c.key), nil
}

// analyze stops after discovery.
type analyze struct{}

func (analyze) Mode() Mode { return ModePrecompile }

func (analyze) Compile(ctx context.Context, c *compilation) (string, error) {
	tree, err := c.parse(ctx)
	if err != nil {
		return "", err
	}
	found, err := c.discover(ctx, tree)
	if err != nil {
		return "", err
	}
	for _, dep := range found {
		c.host.AddDependency(dep)
	}
	return "", nil
}

// parse tokenizes and parses the entry. The tree is named after the entry
// key, which is the name it is registered under at runtime.
func (c *compilation) parse(ctx context.Context) (tree *ast.Tree, err error) {
	_, span := c.startSpan(ctx, tracing.SpanParse)
	defer func() { tracing.End(span, err) }()

	stream, err := c.env.Tokenize(loader.NewSource(c.source, c.key, ""))
	if err != nil {
		return nil, c.fail(PhaseParse, err)
	}
	tree, err = c.env.Parse(stream)
	if err != nil {
		return nil, c.fail(PhaseParse, err)
	}
	return tree, nil
}

// discover runs the reference visitor over tree and returns the real files
// it references, in order of first appearance.
func (c *compilation) discover(ctx context.Context, tree *ast.Tree) (found []string, err error) {
	ctx, span := c.startSpan(ctx, tracing.SpanDiscover)
	defer func() { tracing.End(span, err) }()

	opts := []discovery.Option{
		discovery.WithLogger(c.logger),
		discovery.WithUnresolvedHook(func(ctx context.Context, name string, loc ast.Location) {
			c.unresolved = append(c.unresolved, Unresolved{Name: name, Line: loc.Line})
			if hook := c.compiler.onUnresolved; hook != nil {
				hook(ctx, name, loc)
			}
		}),
	}
	if c.compiler.fileChecker != nil {
		opts = append(opts, discovery.WithFileChecker(c.compiler.fileChecker))
	}

	visitor := discovery.New(c.env.Loader(), c.resourcePath, c.compiler.deriver.Func(), opts...)
	if err := visitor.Visit(ctx, tree); err != nil {
		return nil, c.fail(PhaseDiscover, err)
	}

	c.references = visitor.References()
	found = visitor.FoundTemplateNames()
	c.compiler.recorder.RecordReferences(len(found), len(c.references), len(c.unresolved))
	return found, nil
}

// precompiledModule assembles the generated module: require the runtime
// environment, capture the compiled templates module, require every
// discovered template so the bundler includes it, register the module under
// key and export a render function.
func precompiledModule(modulePath, compiled string, found []string, key string) string {
	parts := make([]string, 0, len(found)+4)
	parts = append(parts, fmt.Sprintf("const env = require(%s);", quote(modulePath)))
	parts = append(parts, fmt.Sprintf(`let templatesModule = (() => {
let module = {
    exports: undefined
};

%s

    return module.exports;
})();
`, compiled))
	for _, name := range found {
		parts = append(parts, fmt.Sprintf("require(%s);", quote(keys.Normalize(name))))
	}
	parts = append(parts, fmt.Sprintf("env.registerTemplatesModule(templatesModule, %s);", quote(key)))
	parts = append(parts, fmt.Sprintf(`
let loadTemplate = () => env.loadTemplate(%s);

module.exports = (context = {}) => {
    return loadTemplate().then((template) => template.render(context));
};`, quote(key)))
	return strings.Join(parts, "\n")
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// quote returns s as a single quoted JavaScript string literal.
func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}
