// Package twig provides the rendering environment for Twig templates.
//
// An Environment owns a loader, the registry of precompiled template modules
// and the filters, functions and tests available to templates. It parses
// templates on demand and renders them against a context:
//
//	env := twig.NewEnvironment(fsLoader, twig.WithAutoescape(twig.EscapeHTML))
//	out, err := env.Render(ctx, "index.twig", map[string]any{"title": "Home"})
//
// Every template the environment loads by name is announced to the listeners
// registered with OnTemplate, which lets callers track the templates a render
// touched.
package twig
