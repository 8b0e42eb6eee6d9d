package agents

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

// SearchConfig selects the search provider and its cache.
type SearchConfig struct {
	Provider string      `mapstructure:"provider"` // mock | html
	HTML     HTMLConfig  `mapstructure:"html"`
	Cache    CacheConfig `mapstructure:"cache"`
}

// CacheConfig configures the search result cache.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // none | lru | redis
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// NewSearchProvider builds the configured provider. redis is only used by
// the redis cache backend and may be nil otherwise.
func NewSearchProvider(cfg SearchConfig, redis *circuitbreaker.RedisWrapper, logger *zap.Logger) (SearchProvider, error) {
	var p SearchProvider
	switch cfg.Provider {
	case "", "mock":
		p = MockProvider{}
	case "html":
		p = NewHTMLProvider(cfg.HTML, logger)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}

	switch cfg.Cache.Backend {
	case "", "none":
		return p, nil
	case "lru":
		c, err := NewLRUCache(cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("create search cache: %w", err)
		}
		return NewCachedProvider(p, c, cfg.Cache.TTL, logger), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("search cache backend redis requires a redis address")
		}
		return NewCachedProvider(p, NewRedisCache(redis, logger), cfg.Cache.TTL, logger), nil
	default:
		return nil, fmt.Errorf("unknown search cache backend %q", cfg.Cache.Backend)
	}
}

// Deps are the collaborators of the in-process workers.
type Deps struct {
	Search SearchProvider
	// Now dates citations; nil means time.Now.
	Now func() time.Time
}

// Register installs all four research capabilities on inv.
func Register(inv *workers.LocalInvoker, deps Deps) {
	search := deps.Search
	if search == nil {
		search = MockProvider{}
	}
	inv.Register(workers.CapabilitySearch, SearchHandler(search))
	inv.Register(workers.CapabilityAnalyze, AnalyzeHandler())
	inv.Register(workers.CapabilityGenerateSummary, SummarizeHandler())
	inv.Register(workers.CapabilityFormatCitations, NewCitationFormatter(deps.Now).Handler())
}
