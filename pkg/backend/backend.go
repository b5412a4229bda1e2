// Package backend builds the configured model backend.
package backend

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/backend/echo"
	"github.com/papercomputeco/parley/pkg/backend/ollama"
	"github.com/papercomputeco/parley/pkg/backend/openai"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/orchestrator"
)

// EchoDelay paces the echo backend so streaming is visible.
const EchoDelay = 40 * time.Millisecond

// New creates the backend selected by cfg.
func New(cfg config.Backend, logger *zap.Logger) (orchestrator.Backend, error) {
	switch cfg.Kind {
	case config.KindOllama, "":
		return ollama.New(cfg.URL, logger), nil
	case config.KindOpenAI:
		b, err := openai.New(cfg.APIKey, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.KindEcho:
		return echo.New(EchoDelay), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}
