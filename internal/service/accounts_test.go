package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/manus"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/and161185/manus-bridge/internal/vault"
)

func newAccountService(t *testing.T, accounts *fakeAccountRepo, client *fakeClient) (*AccountServiceImpl, *vault.Vault) {
	t.Helper()
	v := vault.New("test-secret")
	if client == nil {
		client = &fakeClient{}
	}
	return NewAccountService(accounts, v, client), v
}

func TestAccountService_Create_EncryptsKey(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	svc, v := newAccountService(t, repo, nil)
	user := uuid.Must(uuid.NewV4())

	a, err := svc.Create(context.Background(), user, CreateAccountParams{Name: "A", APIKey: "sk-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.EncryptedAPIKey != "" {
		t.Fatalf("returned account must not carry ciphertext")
	}

	stored := repo.created[0]
	if stored.EncryptedAPIKey == "" || strings.Contains(stored.EncryptedAPIKey, "sk-1") {
		t.Fatalf("stored key must be opaque ciphertext: %q", stored.EncryptedAPIKey)
	}
	plain, err := v.Decrypt(stored.EncryptedAPIKey)
	if err != nil || plain != "sk-1" {
		t.Fatalf("decrypt stored key: %q %v", plain, err)
	}
}

func TestAccountService_Create_FirstBecomesDefault(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	svc, _ := newAccountService(t, repo, nil)
	user := uuid.Must(uuid.NewV4())

	first, err := svc.Create(context.Background(), user, CreateAccountParams{Name: "A", APIKey: "sk-1"})
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}
	if !first.IsDefault {
		t.Fatalf("first account must become default")
	}
	second, err := svc.Create(context.Background(), user, CreateAccountParams{Name: "B", APIKey: "sk-2"})
	if err != nil {
		t.Fatalf("Create B: %v", err)
	}
	if second.IsDefault {
		t.Fatalf("second account must not steal default")
	}
}

func TestAccountService_Create_Validation(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	svc, _ := newAccountService(t, repo, nil)
	user := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	cases := []CreateAccountParams{
		{Name: "", APIKey: "sk-1"},
		{Name: "A", APIKey: ""},
		{Name: "A", APIKey: "sk-1", BaseURL: "not a url"},
		{Name: "A", APIKey: "sk-1", BaseURL: "ftp://x"},
	}
	for _, p := range cases {
		if _, err := svc.Create(ctx, user, p); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("params %+v: want ErrValidation, got %v", p, err)
		}
	}
	if len(repo.created) != 0 {
		t.Fatalf("nothing may be stored on validation failure")
	}
}

func TestAccountService_List_NeverExposesKeyMaterial(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	svc, _ := newAccountService(t, repo, nil)
	user := uuid.Must(uuid.NewV4())

	if _, err := svc.Create(context.Background(), user, CreateAccountParams{Name: "A", APIKey: "sk-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	out, err := svc.List(context.Background(), user)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].EncryptedAPIKey != "" {
		t.Fatalf("list must strip ciphertext: %+v", out)
	}

	// Wire shape check: the serialized row has no key field at all.
	raw, err := json.Marshal(out[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	lower := strings.ToLower(string(raw))
	if strings.Contains(lower, "apikey") || strings.Contains(lower, "api_key") {
		t.Fatalf("serialized account leaks key field: %s", raw)
	}
}

func TestAccountService_Delete_UnknownID(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	svc, _ := newAccountService(t, repo, nil)
	user := uuid.Must(uuid.NewV4())

	err := svc.Delete(context.Background(), user, uuid.Must(uuid.NewV4()))
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAccountService_Delete_ForeignAccountHidden(t *testing.T) {
	t.Parallel()
	owner := uuid.Must(uuid.NewV4())
	account := &model.Account{ID: uuid.Must(uuid.NewV4()), UserID: owner, Name: "A"}
	repo := newFakeAccountRepo(account)
	svc, _ := newAccountService(t, repo, nil)

	stranger := uuid.Must(uuid.NewV4())
	if err := svc.Delete(context.Background(), stranger, account.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign rows must look missing, got %v", err)
	}
}

func TestAccountService_Test_Classification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		listErr error
		want    error
	}{
		{"ok", nil, nil},
		{"invalid key", &manus.APIError{StatusCode: 401, Message: "nope"}, ErrInvalidAPIKey},
		{"forbidden", &manus.APIError{StatusCode: 403, Message: "nope"}, ErrInsufficientPermission},
		{"server error", &manus.APIError{StatusCode: 500, Message: "boom"}, ErrUpstreamUnavailable},
		{"network", &manus.APIError{Message: "refused"}, ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeAccountRepo()
			client := &fakeClient{listErr: tc.listErr, listOut: &manus.ListResult{Data: []manus.TaskResponse{}}}
			svc, _ := newAccountService(t, repo, client)
			user := uuid.Must(uuid.NewV4())

			created, err := svc.Create(context.Background(), user, CreateAccountParams{Name: "A", APIKey: "sk-1"})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			got := svc.Test(context.Background(), user, created.ID)
			if !errors.Is(got, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
			if tc.want != nil && strings.Contains(got.Error(), "sk-1") {
				t.Fatalf("error leaks the api key: %v", got)
			}
		})
	}
}

func TestAccountService_Test_ProbesWithDecryptedKey(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	client := &fakeClient{listOut: &manus.ListResult{Data: []manus.TaskResponse{}}}
	svc, _ := newAccountService(t, repo, client)
	user := uuid.Must(uuid.NewV4())

	created, err := svc.Create(context.Background(), user, CreateAccountParams{Name: "A", APIKey: "sk-1", BaseURL: "https://api.manus.example"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Test(context.Background(), user, created.ID); err != nil {
		t.Fatalf("Test: %v", err)
	}
	if len(client.listIn) != 1 || client.listIn[0].Limit != 1 {
		t.Fatalf("listIn=%v", client.listIn)
	}
	if client.creds[0].APIKey != "sk-1" || client.creds[0].BaseURL != "https://api.manus.example" {
		t.Fatalf("creds=%+v", client.creds[0])
	}
}

func TestAccountService_SetDefault_Switches(t *testing.T) {
	t.Parallel()
	repo := newFakeAccountRepo()
	svc, _ := newAccountService(t, repo, nil)
	user := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	a, _ := svc.Create(ctx, user, CreateAccountParams{Name: "A", APIKey: "sk-1"})
	b, _ := svc.Create(ctx, user, CreateAccountParams{Name: "B", APIKey: "sk-2"})

	if err := svc.SetDefault(ctx, user, b.ID); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if repo.byID[a.ID].IsDefault || !repo.byID[b.ID].IsDefault {
		t.Fatalf("default not switched")
	}
}
