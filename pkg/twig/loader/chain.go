package loader

import (
	"context"
	"fmt"
)

// ChainLoader delegates to a list of loaders. The first loader reporting that
// a template exists serves it.
type ChainLoader struct {
	loaders []Loader
}

// NewChainLoader creates a chain from loaders, tried in order.
func NewChainLoader(loaders ...Loader) *ChainLoader {
	return &ChainLoader{loaders: loaders}
}

// AddLoader appends a loader to the chain.
func (c *ChainLoader) AddLoader(l Loader) {
	c.loaders = append(c.loaders, l)
}

// Loaders returns the loaders of the chain.
func (c *ChainLoader) Loaders() []Loader {
	return c.loaders
}

// Exists reports whether any loader of the chain has name.
func (c *ChainLoader) Exists(ctx context.Context, name string, from *Source) (bool, error) {
	_, err := c.find(ctx, name, from)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Resolve resolves name with the first loader that has it.
func (c *ChainLoader) Resolve(ctx context.Context, name string, from *Source) (string, error) {
	l, err := c.find(ctx, name, from)
	if err != nil {
		return "", err
	}
	return l.Resolve(ctx, name, from)
}

// GetSource loads name from the first loader that has it.
func (c *ChainLoader) GetSource(ctx context.Context, name string, from *Source) (*Source, error) {
	l, err := c.find(ctx, name, from)
	if err != nil {
		return nil, err
	}
	return l.GetSource(ctx, name, from)
}

func (c *ChainLoader) find(ctx context.Context, name string, from *Source) (Loader, error) {
	for i, l := range c.loaders {
		ok, err := l.Exists(ctx, name, from)
		if err != nil {
			return nil, fmt.Errorf("loader %d: %w", i, err)
		}
		if ok {
			return l, nil
		}
	}
	return nil, notFound(name)
}
