package llm

import (
	"context"
	"fmt"

	"github.com/kurtb/curator/pkg/config"
)

// New selects the provider implementation once at startup based on
// configuration; callers hold the returned Provider and never branch on
// the backend name again.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Backend {
	case "hosted":
		return NewHosted(cfg), nil
	case "local", "":
		return NewLocal(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
