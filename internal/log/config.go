package log

// Config configures the global logger.
type Config struct {
	// Name is attached to every entry as the "logger" field.
	Name string `conf:"name" yaml:"name" json:"name"`

	// Level is one of debug, info, warn, error, panic, fatal.
	Level string `conf:"level" yaml:"level" json:"level"`

	// Encoding is json or console.
	Encoding string `conf:"encoding" yaml:"encoding" json:"encoding"`

	// Debug enables caller and stacktrace annotations.
	Debug bool `conf:"debug" yaml:"debug" json:"debug"`

	// Output is stdio or file.
	Output string     `conf:"output" yaml:"output" json:"output"`
	File   FileConfig `conf:"file" yaml:"file" json:"file"`
}

type FileConfig struct {
	Path       string `conf:"path" yaml:"path" json:"path"`
	MaxSize    int    `conf:"max_size" yaml:"max_size" json:"max_size"`
	MaxAge     int    `conf:"max_age" yaml:"max_age" json:"max_age"`
	MaxBackups int    `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	LocalTime  bool   `conf:"local_time" yaml:"local_time" json:"local_time"`
}

const (
	OutputStdio = "stdio"
	OutputFile  = "file"

	EncodingJSON    = "json"
	EncodingConsole = "console"
)
