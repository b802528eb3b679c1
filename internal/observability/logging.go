package observability

import (
	"log/slog"
	"os"

	"github.com/smarthubultra/identity-service/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// NewLogger builds the process logger: JSON to stdout, bridged to the
// OTel log pipeline when export is enabled. Also installed as the slog
// default so package-level audit helpers pick it up.
func NewLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if cfg != nil && cfg.OTELEnabled {
		logger = slog.New(otelslog.NewHandler(cfg.OTELServiceName))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	slog.SetDefault(logger)
	return logger
}
