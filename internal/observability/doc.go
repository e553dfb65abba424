// Package observability provides logging and metrics support for the PubMed
// search tool.
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
//	logger = observability.WithSearchContext(logger, searchID, query)
//
// # Metrics
//
//	metrics := observability.NewMetrics("pubmed_search")
//	metrics.RecordSearchStarted()
//	metrics.RecordResolution("arxiv")
//
// A nil *Metrics is valid and records nothing, so library callers and tests
// can skip metric registration.
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	logger = observability.LoggerFromContext(ctx, logger)
//
// # Standard Fields
//
//   - search_id: identifier of one search run
//   - query: the PubMed query term
//   - pmid: PubMed identifier of an article
//   - source: external service (pubmed, pmc, biorxiv, arxiv, researchgate)
//   - request_id, correlation_id: HTTP request identifiers
package observability
