// Package service contains application services for accounts and tasks.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/manus"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/and161185/manus-bridge/internal/repository"
)

// RemoteClient is the upstream task API as seen by services.
// Implemented by *manus.Client; substituted by fakes in tests.
type RemoteClient interface {
	CreateTask(ctx context.Context, creds manus.Credentials, p manus.CreateParams) (*manus.TaskResponse, error)
	ContinueTask(ctx context.Context, creds manus.Credentials, p manus.ContinueParams) (*manus.TaskResponse, error)
	GetTask(ctx context.Context, creds manus.Credentials, remoteID string) (*manus.TaskResponse, error)
	ListTasks(ctx context.Context, creds manus.Credentials, p manus.ListParams) (*manus.ListResult, error)
	DeleteTask(ctx context.Context, creds manus.Credentials, remoteID string) error
}

// Vault decrypts stored API keys.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// AccountService manages stored upstream credentials.
type AccountService interface {
	// Create encrypts the API key and stores a new account.
	Create(ctx context.Context, userID uuid.UUID, p CreateAccountParams) (*model.Account, error)
	// List returns the user's accounts without key material.
	List(ctx context.Context, userID uuid.UUID) ([]model.Account, error)
	// Delete removes an account; its tasks keep their accountId.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// SetDefault makes one account the user's default.
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
	// Test probes the upstream API with the stored key.
	Test(ctx context.Context, userID, id uuid.UUID) error
}

// CreateAccountParams are the inputs for a new account.
type CreateAccountParams struct {
	Name    string
	APIKey  string
	BaseURL string
}

// User-facing results of an account test, classified from the upstream status.
var (
	ErrInvalidAPIKey          = errors.New("invalid API key")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrUpstreamUnavailable    = errors.New("upstream request failed")
)

type AccountServiceImpl struct {
	accounts repository.AccountRepository
	vault    Vault
	client   RemoteClient
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(accounts repository.AccountRepository, vault Vault, client RemoteClient) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, vault: vault, client: client}
}

// Create validates input, encrypts the key, and stores the account.
// The user's first account becomes the default.
func (s *AccountServiceImpl) Create(ctx context.Context, userID uuid.UUID, p CreateAccountParams) (*model.Account, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: empty name", errs.ErrValidation)
	}
	if p.APIKey == "" {
		return nil, fmt.Errorf("%w: empty api key", errs.ErrValidation)
	}
	if p.BaseURL != "" {
		u, err := url.Parse(p.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: malformed base url", errs.ErrValidation)
		}
	}

	blob, err := s.vault.Encrypt(p.APIKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt key: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	isDefault := false
	if _, err := s.accounts.GetDefault(ctx, userID); errors.Is(err, errs.ErrNotFound) {
		isDefault = true
	} else if err != nil {
		return nil, err
	}

	a := &model.Account{
		ID:              id,
		UserID:          userID,
		Name:            p.Name,
		EncryptedAPIKey: blob,
		BaseURL:         p.BaseURL,
		IsDefault:       isDefault,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	out := *a
	out.EncryptedAPIKey = ""
	return &out, nil
}

// List returns the user's accounts with ciphertext stripped.
func (s *AccountServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Account, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	out, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].EncryptedAPIKey = ""
	}
	return out, nil
}

// Delete removes the account if it belongs to the caller.
func (s *AccountServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("%w: empty userID/id", errs.ErrValidation)
	}
	return s.accounts.Delete(ctx, userID, id)
}

// SetDefault switches the user's default account.
func (s *AccountServiceImpl) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return fmt.Errorf("%w: empty userID/id", errs.ErrValidation)
	}
	return s.accounts.SetDefault(ctx, userID, id)
}

// Test decrypts the stored key and issues a cheap listing probe upstream.
// Failures map to user-facing sentinels; the key never appears in them.
func (s *AccountServiceImpl) Test(ctx context.Context, userID, id uuid.UUID) error {
	creds, _, err := s.credentials(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, err := s.client.ListTasks(ctx, creds, manus.ListParams{Limit: 1}); err != nil {
		var apiErr *manus.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusUnauthorized:
				return ErrInvalidAPIKey
			case http.StatusForbidden:
				return ErrInsufficientPermission
			}
		}
		return ErrUpstreamUnavailable
	}
	return nil
}

// credentials loads an account and decrypts its key.
func (s *AccountServiceImpl) credentials(ctx context.Context, userID, id uuid.UUID) (manus.Credentials, *model.Account, error) {
	a, err := s.accounts.Get(ctx, userID, id)
	if err != nil {
		return manus.Credentials{}, nil, err
	}
	key, err := s.vault.Decrypt(a.EncryptedAPIKey)
	if err != nil {
		return manus.Credentials{}, nil, err
	}
	return manus.Credentials{APIKey: key, BaseURL: a.BaseURL}, a, nil
}
