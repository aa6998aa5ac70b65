// Package discovery finds the templates a parsed template references and
// rewrites those references into lookup keys.
//
// A Visitor walks a tree once, in depth-first pre-order. It looks at the
// places a template name can appear:
//
//   - the first argument of the include() function
//   - the expr of include and import tags (from ... import included)
//   - the parent of a module (extends), and every embedded template
//
// Each candidate expression is reduced to its constants. Arrays contribute
// their values (the fallback list form) and conditionals contribute both
// branches. Every constant the loader knows is resolved, recorded when it is
// a real file, and replaced by the key derived from its resolved path.
// Constants the loader does not know are left untouched.
//
// Example:
//
//	v := discovery.New(fsLoader, "/srv/templates/page.twig", keys.NewDeriver(keys.Development).Key)
//	if err := v.Visit(ctx, tree); err != nil {
//	    return err
//	}
//	deps := v.FoundTemplateNames()
package discovery
