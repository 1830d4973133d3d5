// Package builtin wires the shipped extractors into a registry.
package builtin

import (
	"github.com/helixir/scientometrics-service/internal/config"
	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extractors"
	"github.com/helixir/scientometrics-service/internal/extractors/googlescholar"
	"github.com/helixir/scientometrics-service/internal/extractors/openalex"
	"github.com/helixir/scientometrics-service/internal/extractors/semanticscholar"
	"github.com/helixir/scientometrics-service/internal/observability"
)

// Defaults returns the built-in mapping of extractor keys to factories.
func Defaults(cfg config.ExtractorsConfig, metrics *observability.Metrics) map[string]extractors.Factory {
	return map[string]extractors.Factory{
		domain.SourceGoogleScholar.ExtractorKey(): func() extractors.MetricExtractor {
			return googlescholar.New(googlescholar.Config{
				BaseURL:   cfg.GoogleScholar.BaseURL,
				Timeout:   cfg.GoogleScholar.Timeout,
				RateLimit: cfg.GoogleScholar.RateLimit,
				BurstSize: cfg.GoogleScholar.Burst,
				Metrics:   metrics,
			}, nil)
		},
		domain.SourceSemanticScholar.ExtractorKey(): func() extractors.MetricExtractor {
			return semanticscholar.New(semanticscholar.Config{
				BaseURL:   cfg.SemanticScholar.BaseURL,
				APIKey:    cfg.SemanticScholar.APIKey,
				Timeout:   cfg.SemanticScholar.Timeout,
				RateLimit: cfg.SemanticScholar.RateLimit,
				BurstSize: cfg.SemanticScholar.Burst,
				Metrics:   metrics,
			}, nil)
		},
		domain.SourceOpenAlex.ExtractorKey(): func() extractors.MetricExtractor {
			return openalex.New(openalex.Config{
				BaseURL:   cfg.OpenAlex.BaseURL,
				Email:     cfg.OpenAlex.Email,
				Timeout:   cfg.OpenAlex.Timeout,
				RateLimit: cfg.OpenAlex.RateLimit,
				BurstSize: cfg.OpenAlex.Burst,
				Metrics:   metrics,
			}, nil)
		},
	}
}

// NewRegistry creates a registry holding the built-in extractors.
func NewRegistry(cfg config.ExtractorsConfig, metrics *observability.Metrics) *extractors.Registry {
	return extractors.NewRegistry(Defaults(cfg, metrics))
}
