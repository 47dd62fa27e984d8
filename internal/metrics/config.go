package metrics

import "time"

const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"
	ExporterOTLPGRPC = "otlpgrpc"
)

type Config struct {
	Enabled  bool           `conf:"enabled" yaml:"enabled" json:"enabled"`
	Exporter ExporterConfig `conf:"exporter" yaml:"exporter" json:"exporter"`

	// Interval is the period of the metric reader, defaults to one minute.
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}

type ExporterConfig struct {
	// Type is one of stdout, otlphttp, otlpgrpc.
	Type     string `conf:"type" yaml:"type" json:"type"`
	Endpoint string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure bool   `conf:"insecure" yaml:"insecure" json:"insecure"`
}
