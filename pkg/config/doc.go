// Package config provides configuration management for twigpack.
//
// Configuration is read from a YAML file (conventionally twigpack.yaml),
// completed with defaults and overridden by environment variables. Every
// field is validated and all problems are reported together.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("twigpack.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("twigpack.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TWIGPACK_SECTION_FIELD:
//
//   - TWIGPACK_MODE overrides mode
//   - TWIGPACK_ENVIRONMENT_TEMPLATE_PATHS overrides environment.template_paths
//     (comma or path-list separated)
//   - TWIGPACK_MANIFEST_DRIVER overrides manifest.driver
//   - TWIGPACK_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Command line flags (applied by the CLI)
//
// # Example
//
//	mode: production
//	environment:
//	  module_path: ./twig.env.js
//	  template_paths: [templates]
//	  namespaces:
//	    shared: [vendor/shared/templates]
//	entries:
//	  - templates/pages/*.twig
//	output:
//	  dir: dist
//	manifest:
//	  driver: sqlite
//	  path: .twigpack/manifest.db
//	telemetry:
//	  logging:
//	    level: info
//	    format: text
package config
