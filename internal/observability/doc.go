// Package observability provides logging and metrics support for the
// scientometrics service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Add the subject user or the metric source:
//
//	logger = observability.WithUserContext(logger, requestID, userID)
//	logger = observability.WithSourceContext(logger, "openalex", "A5023888391")
//
// # Metrics
//
//	metrics := observability.NewMetrics("scientometrics")
//	metrics.RecordExtraction("openalex", observability.OutcomeOK, 0.42)
//
// Components accept a nil *Metrics and skip recording.
//
// # Standard Fields
//
//   - request_id: HTTP request or CLI run identifier
//   - user_id: user whose metrics are processed
//   - actor: caller performing the action
//   - source: metric provider (google_scholar, semantic_scholar, openalex)
//   - author_id: the user's id on the provider
package observability
