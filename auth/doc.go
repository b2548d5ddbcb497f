// Package auth authenticates callers of the administrative regrid server
// endpoints with API keys or HS256-signed JWTs.
package auth
