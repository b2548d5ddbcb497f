// Package health reports whether a regrid service can serve requests.
//
// A Checker reports the Status of one component. CacheChecker watches the
// memory budget of the matrix cache and IndexChecker verifies that the
// matrix index loads. An Aggregator runs several checkers and combines
// their results; its handlers serve the usual probes:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewCacheChecker(db.Cache(), health.CacheCheckerConfig{}))
//	agg.Register(health.NewIndexChecker(db))
//
//	r.Get("/healthz", health.LivenessHandler())
//	r.Get("/readyz", health.ReadinessHandler(agg))
//	r.Get("/health", health.DetailedHandler(agg))
package health
