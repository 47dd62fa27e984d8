package biz

import (
	"html"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/looplj/todohub/internal/objects"
	"github.com/looplj/todohub/internal/pkg/xtest"
)

const testPassword = "correct-horse-battery"

func newTestServices(t *testing.T, mutate ...func(*AuthConfig)) *Services {
	t.Helper()

	cfg := AuthConfig{
		Secret:  "test-secret",
		BaseURL: "http://todohub.test",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	return NewServicesForTest(xtest.NewDB(t), cfg)
}

// signUp registers a user and returns its signed in session.
func signUp(t *testing.T, svc *Services, name, email string) *SignInResult {
	t.Helper()

	result, err := svc.Auth.SignUp(t.Context(), SignUpInput{
		Name:     name,
		Email:    email,
		Password: testPassword,
	}, RequestMeta{IPAddress: "127.0.0.1", UserAgent: "go-test"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	return result
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	return h
}

// currentSession reloads the session behind token.
func currentSession(t *testing.T, svc *Services, token string) *objects.SessionWithUser {
	t.Helper()

	session, err := svc.Session.GetSession(t.Context(), bearer(token))
	require.NoError(t, err)
	require.NotNil(t, session)

	return session
}

var hrefPattern = regexp.MustCompile(`href="([^"]+)"`)

// mailLink returns the link of the last mail sent to email.
func mailLink(t *testing.T, svc *Services, email string) *url.URL {
	t.Helper()

	msg, ok := svc.Mails.Last(email)
	require.True(t, ok, "no mail sent to %s", email)

	match := hrefPattern.FindStringSubmatch(msg.HTML)
	require.Len(t, match, 2)

	u, err := url.Parse(html.UnescapeString(match[1]))
	require.NoError(t, err)

	return u
}
