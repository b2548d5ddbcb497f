// Package accessor locates the index document and matrix files of a
// matrix repository.
//
// A repository is either a local directory (Local) or an HTTP(S) location
// (URL). The URL accessor downloads into a per-repository cache directory:
// the gzipped index is fetched and unpacked, its checksum is kept in a
// badger metadata store and compared with the remote "index.json.sha256"
// on Reload, and matrices are downloaded once. Remote calls run through a
// resilience.Executor.
package accessor
