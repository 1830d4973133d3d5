// Package extractors provides the metric extractors that pull author-level
// bibliometric indicators from external providers.
//
// Each provider (Google Scholar, Semantic Scholar, OpenAlex) implements
// MetricExtractor in its own subpackage and normalizes its payload into the
// canonical vocabulary of domain.Metrics. The Registry maps extractor keys
// ("<source>_author") to factories and lets the host replace the built-in set.
//
// Example usage:
//
//	extractor, err := registry.Resolve(domain.SourceOpenAlex.ExtractorKey())
//	if err != nil {
//		return err
//	}
//	metrics, err := extractor.ExtractMetrics(ctx, "A5023888391")
package extractors

import (
	"context"
	"errors"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// MetricExtractor fetches the metrics of one author from one provider.
type MetricExtractor interface {
	// ExtractMetrics returns the normalized metrics of authorID.
	//
	// Implementations return an empty, non-nil map and a nil error when the
	// provider does not know the author, and a *domain.ProviderError for
	// every other failure.
	ExtractMetrics(ctx context.Context, authorID string) (domain.Metrics, error)
}

// ExtractorFunc adapts a function to MetricExtractor.
type ExtractorFunc func(ctx context.Context, authorID string) (domain.Metrics, error)

// ExtractMetrics implements MetricExtractor.
func (f ExtractorFunc) ExtractMetrics(ctx context.Context, authorID string) (domain.Metrics, error) {
	return f(ctx, authorID)
}

// Factory builds an extractor.
type Factory func() MetricExtractor

// ExtractorProvider supplies a replacement extractor mapping keyed by
// extractor key. An empty mapping means "no opinion".
type ExtractorProvider interface {
	Extractors() map[string]Factory
}

// ProviderFunc adapts a function to ExtractorProvider.
type ProviderFunc func() map[string]Factory

// Extractors implements ExtractorProvider.
func (f ProviderFunc) Extractors() map[string]Factory {
	return f()
}

// Finish converts the outcome of a provider call into the MetricExtractor
// contract: not-found becomes an empty result and any other error becomes a
// *domain.ProviderError for source.
func Finish(source domain.Source, metrics domain.Metrics, err error) (domain.Metrics, error) {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Metrics{}, nil
		}
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, domain.NewProviderError(source, err)
	}
	if metrics == nil {
		return domain.Metrics{}, nil
	}
	return metrics, nil
}
