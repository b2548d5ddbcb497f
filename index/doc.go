// Package index loads and queries the index of precomputed interpolation
// matrices.
//
// An index document is a JSON object with a schema version and a "matrix"
// mapping from entry names to descriptions:
//
//	{
//	  "version": 1,
//	  "matrix": {
//	    "<name>": {
//	      "input": {...},
//	      "output": {...},
//	      "interpolation": {"engine": "mir", "version": "16", "method": "linear"},
//	      "memory": 1234567
//	    }
//	  }
//	}
//
// Entries that cannot be parsed, including those describing grids this
// package does not support, are dropped during Load so that an index written
// for a newer release still loads. A version mismatch fails the whole load.
package index
