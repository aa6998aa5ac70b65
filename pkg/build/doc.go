// Package build compiles entry templates into JavaScript modules.
//
// A Compiler runs in one of two modes, chosen once from the presence of a
// render context:
//
//   - ModePrecompile parses the entry, discovers and rewrites its template
//     references statically, and emits a module that registers the compiled
//     tree with the runtime environment and exports a render function.
//   - ModeDirectRender renders the entry once at build time and emits the
//     output as a string module. Dependencies are whatever the render loads.
//
// Each compilation gets a fresh template environment, its own tree and its
// own visitor, so a Compiler can be shared between goroutines.
//
// # Usage
//
//	compiler, err := build.New(build.Config{
//		EnvironmentModulePath: "./twig.env.js",
//		KeyMode:               keys.Production,
//		Environment:           build.NewEnvironmentFactory(&cfg.Environment, logger),
//	})
//	host := build.NewRecordingHost("/src/templates/page.twig")
//	result, err := compiler.Compile(ctx, host, source)
package build
