package reactorhttp

import (
	"github.com/ehrlich-b/reactorhttp/internal/logging"
	"github.com/ehrlich-b/reactorhttp/internal/metrics"
)

// DefaultWorkers is used when Options.Workers is left at zero.
const DefaultWorkers = 4

// Options configures a Server at construction time.
type Options struct {
	// Workers is the fixed worker pool size (spec.md §4.2). Zero selects
	// DefaultWorkers.
	Workers int

	// Root is the filesystem root the static file responder serves from.
	// Empty disables the default catch-all static route; call SetRoot
	// later to enable it.
	Root string

	// Logger receives structured log output; nil uses logging.Default().
	Logger *logging.Logger

	// Observer receives per-request metrics; nil records into the Server's
	// own metrics, read back through Server.Metrics.
	Observer metrics.Observer
}
