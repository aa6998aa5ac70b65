package build

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"mercator-hq/twigpack/pkg/telemetry/tracing"
	"mercator-hq/twigpack/pkg/twig/loader"
)

// directRender renders the entry once and emits the output. Dependencies
// are the templates the render loads.
type directRender struct {
	context map[string]any
}

func (*directRender) Mode() Mode { return ModeDirectRender }

func (d *directRender) Compile(ctx context.Context, c *compilation) (string, error) {
	ctx, span := c.startSpan(ctx, tracing.SpanRender)
	defer span.End()

	// The entry is served from memory so unsaved or transformed source wins
	// over what is on disk. Everything else falls through to the real loader.
	override := loader.NewOverrideLoader(map[string]string{c.resourcePath: c.source})
	c.env.SetLoader(loader.NewChainLoader(override, c.env.Loader()))

	c.env.OnTemplate(func(ctx context.Context, name string, from *loader.Source) {
		// Best effort: a name that cannot be resolved fails the render
		// itself if it matters, so the error is dropped here on purpose.
		_ = d.track(ctx, c, name, from)
	})

	rendered, err := c.env.Render(ctx, c.resourcePath, d.context)
	if err != nil {
		err = c.fail(PhaseRender, err)
		tracing.SetError(span, err)
		tracing.SetStatus(span, err)
		return "", err
	}
	tracing.SetStatus(span, nil)

	literal, err := jsonString(rendered)
	if err != nil {
		return "", c.fail(PhaseCodegen, err)
	}
	return "module.exports = " + literal + ";", nil
}

// track resolves name and registers it with the host.
func (d *directRender) track(ctx context.Context, c *compilation, name string, from *loader.Source) error {
	path, err := c.env.Loader().Resolve(ctx, name, from)
	if err != nil {
		return err
	}
	c.host.AddDependency(path)
	return nil
}

// jsonString encodes s as a JSON string without HTML escaping, matching
// what a JavaScript runtime would produce.
func jsonString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
