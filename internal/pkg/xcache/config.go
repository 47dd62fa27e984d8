package xcache

import (
	"fmt"
	"time"

	"github.com/looplj/todohub/internal/pkg/xredis"
)

// Cache modes. An empty mode disables caching, two-level chains memory in front of redis
// and falls back to memory alone when no redis is configured.
const (
	ModeMemory   = "memory"
	ModeRedis    = "redis"
	ModeTwoLevel = "two-level"
)

type Config struct {
	Mode   string        `conf:"mode" yaml:"mode" json:"mode"`
	Memory MemoryConfig  `conf:"memory" yaml:"memory" json:"memory"`
	Redis  xredis.Config `conf:"redis" yaml:"redis" json:"redis"`
}

type MemoryConfig struct {
	Expiration      time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
	CleanupInterval time.Duration `conf:"cleanup_interval" yaml:"cleanup_interval" json:"cleanup_interval"`
}

// Validate reports the settings NewFromConfig would reject.
func (c Config) Validate() error {
	switch c.Mode {
	case "", ModeMemory, ModeTwoLevel:
		return nil
	case ModeRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("cache mode %q requires redis addr or url", c.Mode)
		}

		return nil
	default:
		return fmt.Errorf("unknown cache mode %q", c.Mode)
	}
}
