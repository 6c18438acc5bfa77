package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"zetsuserv/internal/credential"
)

const defaultTimeout = 15 * time.Second

// Mailer sends credential emails through an HTTP mail API (transactional
// JSON POST). The message body embeds the plaintext once; the mailer itself
// never logs it.
type Mailer struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewMailer returns a Mailer for the given API key, base URL, and sender
// address.
func NewMailer(apiKey, baseURL, sender string) *Mailer {
	return &Mailer{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

func subjectFor(kind credential.Kind) string {
	switch kind {
	case credential.KindAccessKey:
		return "Your order tracking access key"
	case credential.KindVerificationCode:
		return "Your email verification code"
	default:
		return "Your access credential"
	}
}

func bodyFor(kind credential.Kind, plaintext string) string {
	switch kind {
	case credential.KindAccessKey:
		return fmt.Sprintf("Use this access key together with your order code to track your order: %s", plaintext)
	case credential.KindVerificationCode:
		return fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", plaintext)
	default:
		return plaintext
	}
}

// Send posts the message to the mail API. Returns an error on any non-200
// response; the caller treats that as a delivery failure, not a rollback.
func (m *Mailer) Send(ctx context.Context, destination, plaintext string, kind credential.Kind) error {
	if m.APIKey == "" {
		return fmt.Errorf("mail: API key not configured")
	}
	payload := map[string]interface{}{
		"from":    m.Sender,
		"to":      destination,
		"subject": subjectFor(kind),
		"text":    bodyFor(kind, plaintext),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
