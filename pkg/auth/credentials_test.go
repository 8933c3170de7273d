package auth

import (
	"testing"
	"time"
)

func TestCredentialManager(t *testing.T) {
	manager, _ := NewMockManager()

	account := &Account{
		Name:         "production",
		Username:     "api_user_123",
		Password:     "api_secret_456",
		LastModified: time.Now(),
	}

	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}

	retrieved, err := manager.Retrieve("production")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Username != account.Username {
		t.Errorf("Username mismatch: got %s, want %s", retrieved.Username, account.Username)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch: got %s, want %s", retrieved.Password, account.Password)
	}

	accounts, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("Expected 1 account in list, got %d", len(accounts))
	}

	if err := manager.Delete("production"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("production"); err == nil {
		t.Error("Expected error retrieving deleted account")
	}
}

func TestManagerRejectsIncompleteAccounts(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name    string
		account *Account
	}{
		{"NoName", &Account{Username: "u", Password: "p"}},
		{"NoUsername", &Account{Name: "a", Password: "p"}},
		{"NoPassword", &Account{Name: "a", Username: "u"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := manager.Store(test.account); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("SERPHARVEST_API_USER", "envuser")
	t.Setenv("SERPHARVEST_API_PASS", "envpass")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve environment credentials: %v", err)
	}
	if account.Name != "default" {
		t.Errorf("Expected account name default, got %q", account.Name)
	}
	if account.Username != "envuser" || account.Password != "envpass" {
		t.Errorf("Unexpected credentials: %s/%s", account.Username, account.Password)
	}

	if err := store.Store(account); err != ErrStoreUnavailable {
		t.Errorf("Environment store must be read-only, got %v", err)
	}
	if err := store.Delete("default"); err != ErrStoreUnavailable {
		t.Errorf("Environment store must be read-only, got %v", err)
	}
}

func TestEnvironmentStoreMissingCredentials(t *testing.T) {
	t.Setenv("SERPHARVEST_API_USER", "")
	t.Setenv("SERPHARVEST_API_PASS", "")

	store := NewEnvironmentStore()
	if _, err := store.Retrieve(""); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if store.Exists("") {
		t.Error("Exists should be false without environment credentials")
	}
}
