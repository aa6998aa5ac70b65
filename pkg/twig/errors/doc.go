// Package errors provides rich error types for Twig tokenizing, parsing,
// loading and rendering.
//
// Errors carry the template location, the surrounding source lines and an
// optional suggestion so a failed build points straight at the offending tag:
//
//	[syntax] Unexpected "endfor" tag (expecting closing tag for the "if" tag defined near line 3)
//	  --> pages/index.twig:7
//	  |
//	   6 | {% for item in items %}
//	-> 7 | {% endfor %}
//	  |
//	  = suggestion: Close the "if" tag with {% endif %}
//
// # Error Types
//
// ErrorTypeSyntax: tokenizer and parser failures (fatal for a compilation)
//
// ErrorTypeLoader: a template could not be found or read
//
// ErrorTypeRuntime: rendering failures (unknown filter, bad call, ...)
//
// ErrorTypeIO: file I/O errors
package errors
