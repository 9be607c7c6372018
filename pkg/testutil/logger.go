package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger whose output goes nowhere, for wiring
// components under test without polluting test output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
