package xredis

import (
	"time"
)

type Config struct {
	// Addr is host:port, ignored when URL is set.
	Addr string `conf:"addr" yaml:"addr" json:"addr"`
	// URL is a redis:// or rediss:// url, credentials and db in the url are honored.
	URL                   string `conf:"url" yaml:"url" json:"url"`
	Username              string `conf:"username" yaml:"username" json:"username"`
	Password              string `conf:"password" yaml:"password" json:"password"`
	DB                    *int   `conf:"db" yaml:"db" json:"db"`
	TLS                   bool   `conf:"tls" yaml:"tls" json:"tls"`
	TLSInsecureSkipVerify bool   `conf:"tls_insecure_skip_verify" yaml:"tls_insecure_skip_verify" json:"tls_insecure_skip_verify"`

	// KeyPrefix is prepended to every cache key, defaults to "todohub:".
	KeyPrefix  string        `conf:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
	Expiration time.Duration `conf:"expiration" yaml:"expiration" json:"expiration"`
}

// Enabled reports whether a redis server is configured.
func (c Config) Enabled() bool {
	return c.URL != "" || c.Addr != ""
}
