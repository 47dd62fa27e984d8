package db

type Config struct {
	// Dialect is one of sqlite3, postgres, mysql.
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`
	DSN     string `conf:"dsn" yaml:"dsn" json:"dsn"`

	// Debug logs every statement.
	Debug bool `conf:"debug" yaml:"debug" json:"debug"`

	MaxOpenConns int `conf:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int `conf:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
}
