// Package secret resolves credentials used to reach matrix repositories.
//
// Values pass through strict environment expansion (see ExpandEnvStrict)
// and may carry references with the prefix "secretref:" that a Provider
// resolves:
//   - Full value:  secretref:env:REGRID_TOKEN
//   - Inline use:  Bearer secretref:file:/run/secrets/regrid-token
//
// The env and file providers are built in; NewDefaultResolver registers
// both.
package secret
