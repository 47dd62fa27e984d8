package mail

const (
	ProviderResend   = "resend"
	ProviderDisabled = "disabled"

	DefaultFrom = "delivered@resend.dev"
)

type Config struct {
	// Provider is resend or disabled. A disabled provider logs the mails instead of sending them.
	Provider string `conf:"provider" yaml:"provider" json:"provider"`
	APIKey   string `conf:"api_key" yaml:"api_key" json:"api_key"`

	// BaseURL overrides the Resend API endpoint.
	BaseURL string `conf:"base_url" yaml:"base_url" json:"base_url"`

	From string `conf:"from" yaml:"from" json:"from"`

	// TestTo receives the verification mails instead of the user when set.
	TestTo string `conf:"test_to" yaml:"test_to" json:"test_to"`
}
