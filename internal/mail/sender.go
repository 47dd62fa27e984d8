// Package mail sends the transactional mails of the auth and organization flows.
package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/resend/resend-go/v2"

	"github.com/looplj/todohub/internal/log"
)

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns the sender for the configured provider.
func NewSender(cfg Config) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderResend:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mail provider %q requires api_key", cfg.Provider)
		}

		client := resend.NewClient(cfg.APIKey)

		if cfg.BaseURL != "" {
			u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
			if err != nil {
				return nil, fmt.Errorf("invalid mail base_url: %w", err)
			}

			client.BaseURL = u
		}

		return &ResendSender{client: client}, nil
	case ProviderDisabled, "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

type ResendSender struct {
	client *resend.Client
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	log.Debug(ctx, "mail sent", log.String("id", resp.Id), log.String("subject", msg.Subject))

	return nil
}

// LogSender drops mails after logging them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	log.Info(ctx, "mail delivery disabled, dropping mail",
		log.String("to", msg.To),
		log.String("subject", msg.Subject),
	)

	return nil
}

// Recorder keeps sent mails in memory, used by tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)

	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Message(nil), r.messages...)
}

// Last returns the last mail sent to, ok is false when there is none.
func (r *Recorder) Last(to string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].To == to {
			return r.messages[i], true
		}
	}

	return Message{}, false
}
