package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/mail"
	"github.com/looplj/todohub/internal/pkg/xcache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, config.APIServer.Port)
	assert.Equal(t, "todohub", config.APIServer.Name)
	assert.Equal(t, 30*time.Second, config.APIServer.RequestTimeout)
	assert.Equal(t, "TH-Trace-Id", config.APIServer.Trace.TraceHeader)
	assert.True(t, config.APIServer.RateLimit.Enabled)
	assert.Equal(t, 10*time.Second, config.APIServer.RateLimit.Window)
	assert.Equal(t, 100, config.APIServer.RateLimit.Max)
	assert.Equal(t, 3, config.APIServer.RateLimit.StrictMax)
	assert.Contains(t, config.APIServer.RateLimit.StrictPaths, "/sign-in/email")
	assert.Equal(t, "sqlite3", config.DB.Dialect)
	assert.Equal(t, xcache.ModeMemory, config.Cache.Mode)
	assert.Equal(t, 7*24*time.Hour, config.Auth.SessionExpiresIn)
	assert.Equal(t, mail.DefaultFrom, config.Mail.From)
	assert.False(t, config.Metrics.Enabled)

	require.NoError(t, config.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  request_timeout: 5s
  cors:
    enabled: true
    allowed_origins:
      - https://app.example.com
db:
  dialect: postgres
  dsn: postgres://todohub@localhost/todohub
auth:
  base_url: https://todohub.example.com
  admin_emails:
    - root@example.com
mail:
  provider: resend
  api_key: re_123
  test_to: inbox@example.com
`)

	config, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.APIServer.Port)
	assert.Equal(t, 5*time.Second, config.APIServer.RequestTimeout)
	assert.Equal(t, []string{"https://app.example.com"}, config.APIServer.CORS.AllowedOrigins)
	assert.Equal(t, "postgres", config.DB.Dialect)
	assert.Equal(t, "https://todohub.example.com", config.Auth.BaseURL)
	assert.Equal(t, []string{"root@example.com"}, config.Auth.AdminEmails)
	assert.Equal(t, "re_123", config.Mail.APIKey)
	assert.Equal(t, "inbox@example.com", config.Mail.TestTo)

	// Untouched keys keep their defaults.
	assert.Equal(t, "todohub", config.Log.Name)
	assert.Equal(t, 24*time.Hour, config.Auth.ShortSessionExpiresIn)

	require.NoError(t, config.Validate())
}

func TestLoadFile_Env(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	t.Setenv("TODOHUB_SERVER_PORT", "9100")
	t.Setenv("TODOHUB_DB_DSN", "file:env.db")
	t.Setenv("TODOHUB_SERVER_REQUEST_TIMEOUT", "2m")
	t.Setenv("TODOHUB_AUTH_ADMIN_EMAILS", "a@example.com,b@example.com")

	config, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.APIServer.Port)
	assert.Equal(t, "file:env.db", config.DB.DSN)
	assert.Equal(t, 2*time.Minute, config.APIServer.RequestTimeout)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, config.Auth.AdminEmails)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := writeConfig(t, "server: [port\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestConfig_Validate(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := Load()
	require.NoError(t, err)

	config.APIServer.Port = 0
	config.DB.Dialect = "oracle"
	config.DB.DSN = ""
	config.Cache.Mode = xcache.ModeRedis
	config.Auth.BaseURL = "/relative"
	config.Mail.Provider = mail.ProviderResend
	config.Metrics.Enabled = true
	config.Metrics.Exporter.Type = "prometheus"

	err = config.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 7)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")
	assert.Contains(t, err.Error(), `db.dialect "oracle" is not supported`)
	assert.Contains(t, err.Error(), "mail.api_key is required")
}
