package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/tallyhq/tallycrm-backend/pkg/config"
)

const maxTagLen = 100

var tagSanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

var errDisabled = errors.New("email sending is not configured")

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
	Tags    []string
}

// Sender is the outbound email surface used by services.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
	SendAs(ctx context.Context, creds Credentials, msg Message) (string, error)
}

// Credentials are per-tenant Resend credentials overriding the global ones.
type Credentials struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Client wraps Resend with the platform's default sender identity.
type Client struct {
	api       *resend.Client
	fromEmail string
	fromName  string
}

// NewClient builds the global email client. A missing API key yields a
// disabled client; sends then fail with a descriptive error instead of
// panicking at startup.
func NewClient(cfg config.ResendConfig) *Client {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return &Client{}
	}
	return &Client{
		api:       resend.NewClient(key),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send delivers the message with the global sender identity.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if c == nil || c.api == nil {
		return "", errDisabled
	}
	return send(ctx, c.api, formatFrom(c.fromName, c.fromEmail), msg)
}

// SendAs delivers the message with tenant credentials, falling back to the
// global identity when the tenant has none configured.
func (c *Client) SendAs(ctx context.Context, creds Credentials, msg Message) (string, error) {
	if strings.TrimSpace(creds.APIKey) == "" || strings.TrimSpace(creds.FromEmail) == "" {
		return c.Send(ctx, msg)
	}
	api := resend.NewClient(strings.TrimSpace(creds.APIKey))
	return send(ctx, api, formatFrom(creds.FromName, creds.FromEmail), msg)
}

func send(ctx context.Context, api *resend.Client, from string, msg Message) (string, error) {
	if msg.To == "" {
		return "", errors.New("recipient is required")
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}
	for _, tag := range msg.Tags {
		clean := SanitizeTag(tag)
		if clean == "" {
			continue
		}
		params.Tags = append(params.Tags, resend.Tag{Name: "category", Value: clean})
	}

	sent, err := api.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return sent.Id, nil
}

// SanitizeTag strips characters Resend rejects and truncates to the API limit.
func SanitizeTag(tag string) string {
	clean := tagSanitizeRe.ReplaceAllString(strings.TrimSpace(tag), "_")
	clean = strings.Trim(clean, "_")
	if len(clean) > maxTagLen {
		clean = clean[:maxTagLen]
	}
	return clean
}

func formatFrom(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
