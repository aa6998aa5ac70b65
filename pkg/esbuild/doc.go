// Package esbuild exposes the template compiler as an esbuild plugin.
//
// The plugin loads every file matching its filter through build.Compiler
// and hands the generated CommonJS module back to esbuild. The files the
// compilation depended on are reported as watch files, so esbuild's watch
// mode rebuilds the bundle when an included template changes.
//
//	plugin := esbuild.Plugin(compiler)
//	result := api.Build(api.BuildOptions{
//	    EntryPoints: []string{"src/index.js"},
//	    Bundle:      true,
//	    Plugins:     []api.Plugin{plugin},
//	})
package esbuild
