package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franzego/eventmailer/internal/models"
	"github.com/franzego/eventmailer/pkg/circuitbreaker"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned by the directory for unknown user ids. LookupOwner
// never surfaces it.
var ErrUserNotFound = errors.New("user not found")

// UserServiceClient reads owner identities from the user directory
// (GET {baseURL}/users/{id}, bearer secret key).
type UserServiceClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

type directoryUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func NewUserServiceClient(baseURL, secretKey string, logger *zap.Logger) *UserServiceClient {
	return &UserServiceClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		// a missing user is an answer, not an outage
		cb: circuitbreaker.NewCircuitBreaker("user-service", func(err error) bool {
			return err == nil || errors.Is(err, ErrUserNotFound)
		}),
		logger: logger,
	}
}

// LookupOwner resolves the first name and primary email of ownerID. An empty
// id or an unknown user yields an empty Owner and no error; any other failure
// is returned.
func (u *UserServiceClient) LookupOwner(ctx context.Context, ownerID string) (models.Owner, error) {
	if ownerID == "" {
		return models.Owner{}, nil
	}

	result, err := u.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/users/%s", u.baseURL, url.PathEscape(ownerID)), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+u.secretKey)
		req.Header.Set("Accept", "application/json")

		resp, err := u.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrUserNotFound
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("user service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var user directoryUser
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		return user, nil
	})

	if errors.Is(err, ErrUserNotFound) {
		u.logger.Warn("owner not found in user directory", zap.String("owner_id", ownerID))
		return models.Owner{}, nil
	}
	if err != nil {
		return models.Owner{}, fmt.Errorf("lookup owner %s: %w", ownerID, err)
	}

	user := result.(directoryUser)
	return models.Owner{
		FirstName: user.FirstName,
		Email:     primaryEmail(user),
	}, nil
}

func primaryEmail(user directoryUser) string {
	for _, addr := range user.EmailAddresses {
		if addr.ID == user.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	if len(user.EmailAddresses) > 0 {
		return user.EmailAddresses[0].EmailAddress
	}
	return ""
}
