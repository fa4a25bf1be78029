package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
)

// StatusError is a non-2xx answer from the mail API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("email service returned status %d: %s", e.StatusCode, e.Body)
}

// rejected reports whether the mail API refused this one message (bad
// recipient, invalid payload) while being otherwise healthy. 429 is excluded.
func rejected(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}

// EmailServiceClient sends HTML mail through a SendGrid v3 compatible
// transactional API (POST {baseURL}/mail/send).
type EmailServiceClient struct {
	baseURL     string
	apiKey      string
	fromName    string
	fromAddress string
	httpClient  *http.Client
	cb          *gobreaker.CircuitBreaker
}

func NewEmailClient(baseURL, apiKey, fromName, fromAddress string) *EmailServiceClient {
	return &EmailServiceClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// a rejected message must not block the mails queued after it
		cb: circuitbreaker.NewCircuitBreaker("email-service", func(err error) bool {
			return err == nil || rejected(err)
		}),
	}
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

// Send delivers one email. Any non-2xx response is returned as a *StatusError.
func (e *EmailServiceClient) Send(ctx context.Context, email models.Email) error {
	payload := mailRequest{
		Personalizations: []mailPersonalization{{To: []mailAddress{{Email: email.To}}}},
		From:             mailAddress{Email: e.fromAddress, Name: e.fromName},
		Subject:          email.Subject,
		Content:          []mailContent{{Type: "text/html", Value: email.HTML}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = e.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/mail/send", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("email request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		return nil, nil
	})
	return err
}
