package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tallycrm-backend/pkg/config"
)

func TestSanitizeTag(t *testing.T) {
	cases := map[string]string{
		"invoice sent":       "invoice_sent",
		"Invoice INV-2025":   "Invoice_INV-2025",
		"  spaced  ":         "spaced",
		"weird!@#chars":      "weird_chars",
		"":                   "",
		strings.Repeat("a", 150): strings.Repeat("a", 100),
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeTag(in), "input %q", in)
	}
}

func TestDisabledClientRefusesToSend(t *testing.T) {
	client := NewClient(config.ResendConfig{})
	_, err := client.Send(context.Background(), Message{To: "user@example.com", Subject: "hi"})
	require.Error(t, err)
}

func TestFormatFrom(t *testing.T) {
	require.Equal(t, "billing@tally.example", formatFrom("", "billing@tally.example"))
	require.Equal(t, "Tally <billing@tally.example>", formatFrom("Tally", "billing@tally.example"))
}
