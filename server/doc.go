// Package server exposes a regrid.Service over HTTP.
//
// Routes:
//
//	POST   /v1/regrid         regrid a field
//	GET    /v1/cache          memory cache info
//	DELETE /v1/cache          empty the memory cache
//	GET    /v1/index          matrix index summary
//	POST   /v1/index/reload   reload the matrix index
//	PATCH  /v1/config         change settings at runtime
//	GET    /v1/downloads      files fetched by a URL accessor
//	GET    /healthz, /readyz, /health, /health/{name}
//	GET    /metrics
//
// The DELETE, POST /v1/index/reload and PATCH routes require the admin role
// when Config.Admin is set.
//
// Request bodies and responses are JSON. Errors are returned as
// {"error": "..."} with a status derived from the error kind.
package server
