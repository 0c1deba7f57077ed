package bindgen

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/engine"
	"github.com/wippyai/godot-wasm-bindgen/bindgen/internal/ir"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the bindgen package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the logger of this package and of the internal
// transformation passes. It must be called before Transform.
func SetLogger(l *zap.Logger) {
	logger = l
	engine.SetLogger(l.Named("engine"))
	ir.SetLogger(l.Named("ir"))
}
