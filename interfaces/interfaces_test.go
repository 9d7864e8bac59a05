package interfaces

import (
	"github.com/giygas/apples-stats/stats"
)

// Compile-time checks that the stats client satisfies the contracts it is used through
var (
	_ Recorder             = (*stats.Client)(nil)
	_ Flusher              = (*stats.Client)(nil)
	_ ExportStatusProvider = (*stats.Client)(nil)
)
