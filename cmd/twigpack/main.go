// twigpack compiles Twig templates into JavaScript modules for bundlers.
//
// Every entry template is either precompiled into a module that registers
// the template and the templates it references with a runtime environment,
// or rendered once at build time into a module exporting the resulting
// string.
//
// Usage:
//
//	# Compile one template to stdout
//	twigpack compile templates/page.twig
//
//	# Build every configured entry into the output directory
//	twigpack build --config twigpack.yaml
//
//	# Fail when committed outputs are stale (CI)
//	twigpack build --check
//
//	# Rebuild affected entries on change
//	twigpack watch
//
//	# List the templates an entry depends on
//	twigpack deps templates/page.twig
//
//	# Render with a context instead of precompiling
//	twigpack render templates/page.twig --context '{"name": "World"}'
package main

func main() {
	Execute()
}
