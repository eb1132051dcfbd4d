// Package catalog provides a file-backed implementation of the catalog
// collaborator. The real product catalog lives in the surrounding
// application; this adapter feeds the engine a static tracked-product list.
package catalog

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/internal/infrastructure/rules"
)

// Static serves a fixed list of tracked products.
type Static struct {
	sources []domain.ProductSource
}

// NewStatic creates a catalog over the given sources. Each source's vendor
// domain is normalized, derived from the URL when absent.
func NewStatic(sources []domain.ProductSource) (*Static, error) {
	out := make([]domain.ProductSource, 0, len(sources))
	for _, src := range sources {
		if src.ProductKey == "" {
			return nil, fmt.Errorf("catalog: source with empty product key (url %s)", src.SourceURL)
		}
		if src.Domain == "" {
			d, err := rules.DomainOf(src.SourceURL)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s: %w", src.ProductKey, err)
			}
			src.Domain = d
		} else {
			src.Domain = rules.NormalizeDomain(src.Domain)
		}
		out = append(out, src)
	}
	return &Static{sources: out}, nil
}

// LoadFile reads a tracked-product list from a YAML file with a top-level
// "products" key.
func LoadFile(path string) (*Static, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}

	var sources []domain.ProductSource
	if err := v.UnmarshalKey("products", &sources); err != nil {
		return nil, fmt.Errorf("catalog: decoding %s: %w", path, err)
	}
	return NewStatic(sources)
}

// ListTrackedProducts returns a copy of the tracked-product list.
func (s *Static) ListTrackedProducts(ctx context.Context) ([]domain.ProductSource, error) {
	out := make([]domain.ProductSource, len(s.sources))
	copy(out, s.sources)
	return out, nil
}
