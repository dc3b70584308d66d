package voltdb

import "go.uber.org/zap"

// logger is the package-level structured logger every ExportManager
// logs through and hands to each StreamBuffer it creates, mirroring the
// package-level *log.Logger the row-export core's storage layer logs
// through. It defaults to a no-op logger; call SetLogger before
// constructing an ExportManager to have its output recorded.
var logger = zap.NewNop()

// SetLogger installs l as the package-level logger. A nil l is treated
// as a no-op logger, the same as never calling SetLogger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
