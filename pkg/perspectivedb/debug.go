package perspectivedb

import "os"

// DebugEnabled controls whether pkg/logging's Debug family of methods
// actually emit output. It is set once at startup from the
// PERSPECTIVEDB_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("PERSPECTIVEDB_DEBUG") == "1"
}
