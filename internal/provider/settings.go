package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/sydlexius/soundcheck/internal/encryption"
)

// SettingsService manages provider credentials using the settings key-value
// table. Values stored in the database take precedence over the static
// defaults supplied from the config file or environment.
type SettingsService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor

	mu       sync.RWMutex
	defaults map[string]string
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *sql.DB, encryptor *encryption.Encryptor) *SettingsService {
	return &SettingsService{db: db, encryptor: encryptor, defaults: make(map[string]string)}
}

// SetDefault registers a fallback credential value, typically from config.
// An empty value removes the fallback.
func (s *SettingsService) SetDefault(name ProviderName, field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := credentialSettingKey(name, field)
	if value == "" {
		delete(s.defaults, k)
		return
	}
	s.defaults[k] = value
}

func (s *SettingsService) defaultFor(name ProviderName, field string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[credentialSettingKey(name, field)]
}

// credentialSettingKey returns the settings table key for a provider credential.
func credentialSettingKey(name ProviderName, field string) string {
	return fmt.Sprintf("provider.%s.%s", name, field)
}

// keyStatusSettingKey returns the settings table key for a provider's key test status.
func keyStatusSettingKey(name ProviderName) string {
	return fmt.Sprintf("provider.%s.key_status", name)
}

type ctxKeyOverride struct{}

// WithCredentialOverride returns a child context that overrides a stored
// credential, so a connection test can run against an unsaved value.
func WithCredentialOverride(ctx context.Context, name ProviderName, field, value string) context.Context {
	parent, _ := ctx.Value(ctxKeyOverride{}).(map[string]string)
	overrides := make(map[string]string, len(parent)+1)
	for k, v := range parent {
		overrides[k] = v
	}
	overrides[credentialSettingKey(name, field)] = value
	return context.WithValue(ctx, ctxKeyOverride{}, overrides)
}

// GetCredential returns the decrypted credential for a provider field.
// Lookup order: context override, database, configured default.
// Returns empty string if nothing is configured.
func (s *SettingsService) GetCredential(ctx context.Context, name ProviderName, field string) (string, error) {
	key := credentialSettingKey(name, field)
	if overrides, ok := ctx.Value(ctxKeyOverride{}).(map[string]string); ok {
		if v, found := overrides[key]; found {
			return v, nil
		}
	}

	if s.db != nil {
		var encrypted string
		err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&encrypted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// fall through to default
		case err != nil:
			return "", fmt.Errorf("reading %s for %s: %w", field, name, err)
		default:
			plaintext, err := s.encryptor.Decrypt(encrypted)
			if err != nil {
				return "", fmt.Errorf("decrypting %s for %s: %w", field, name, err)
			}
			return plaintext, nil
		}
	}
	return s.defaultFor(name, field), nil
}

// GetAPIKey is shorthand for GetCredential(ctx, name, FieldAPIKey).
func (s *SettingsService) GetAPIKey(ctx context.Context, name ProviderName) (string, error) {
	return s.GetCredential(ctx, name, FieldAPIKey)
}

// SetCredentials encrypts and stores credential fields for a provider.
// The upserts and status clear are performed in a single transaction.
func (s *SettingsService) SetCredentials(ctx context.Context, name ProviderName, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	for field, value := range values {
		encrypted, err := s.encryptor.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypting %s for %s: %w", field, name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
			credentialSettingKey(name, field), encrypted, encrypted,
		); err != nil {
			return fmt.Errorf("storing %s for %s: %w", field, name, err)
		}
	}
	// Clear stale status so the key shows as "untested" until re-verified.
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", keyStatusSettingKey(name)); err != nil {
		return fmt.Errorf("clearing key status for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credentials for %s: %w", name, err)
	}
	return nil
}

// SetAPIKey is shorthand for storing a single api_key field.
func (s *SettingsService) SetAPIKey(ctx context.Context, name ProviderName, apiKey string) error {
	return s.SetCredentials(ctx, name, map[string]string{FieldAPIKey: apiKey})
}

// DeleteCredentials removes all stored credentials for a provider and its
// key status in a single transaction. Configured defaults are untouched.
func (s *SettingsService) DeleteCredentials(ctx context.Context, name ProviderName) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	keys := []string{keyStatusSettingKey(name)}
	for _, field := range CredentialFields(name) {
		keys = append(keys, credentialSettingKey(name, field))
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", k); err != nil {
			return fmt.Errorf("deleting %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete for %s: %w", name, err)
	}
	return nil
}

// DeleteAllCredentials wipes every stored provider credential and status.
func (s *SettingsService) DeleteAllCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key LIKE 'provider.%'"); err != nil {
		return fmt.Errorf("clearing provider credentials: %w", err)
	}
	return nil
}

// SetKeyStatus persists the test result status ("ok", "invalid") for a provider.
// An empty string deletes the status row, reverting to "untested".
func (s *SettingsService) SetKeyStatus(ctx context.Context, name ProviderName, status string) error {
	key := keyStatusSettingKey(name)
	if status == "" {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
			return fmt.Errorf("clearing key status for %s: %w", name, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, status, status,
	)
	if err != nil {
		return fmt.Errorf("storing key status for %s: %w", name, err)
	}
	return nil
}

// GetKeyStatus returns the persisted test status for a provider key.
// Returns empty string if no status is stored.
func (s *SettingsService) GetKeyStatus(ctx context.Context, name ProviderName) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", keyStatusSettingKey(name)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key status for %s: %w", name, err)
	}
	return value, nil
}

// IsConfigured reports whether every credential field of a provider has a
// value from any source.
func (s *SettingsService) IsConfigured(ctx context.Context, name ProviderName) (bool, error) {
	for _, field := range CredentialFields(name) {
		v, err := s.GetCredential(ctx, name, field)
		if err != nil {
			return false, err
		}
		if v == "" {
			return false, nil
		}
	}
	return true, nil
}

// ProviderKeyStatus describes the credential configuration state for a provider.
type ProviderKeyStatus struct {
	Name        ProviderName   `json:"name"`
	DisplayName string         `json:"display_name"`
	Fields      []string       `json:"fields"`
	HasKey      bool           `json:"has_key"`
	Status      string         `json:"status"` // "ok", "invalid", "untested", "unconfigured"
	AccessTier  AccessTier     `json:"access_tier"`
	HelpURL     string         `json:"help_url,omitempty"`
	RateLimit   *RateLimitInfo `json:"rate_limit,omitempty"`
}

// ListProviderKeyStatuses returns the key configuration status for all known providers.
func (s *SettingsService) ListProviderKeyStatuses(ctx context.Context) ([]ProviderKeyStatus, error) {
	caps := ProviderCapabilities()
	statuses := make([]ProviderKeyStatus, 0, len(AllProviderNames()))
	for _, name := range AllProviderNames() {
		hasKey, err := s.IsConfigured(ctx, name)
		if err != nil {
			return nil, err
		}
		status := "unconfigured"
		if hasKey {
			status = "untested"
			persisted, err := s.GetKeyStatus(ctx, name)
			if err != nil {
				return nil, err
			}
			if persisted != "" {
				status = persisted
			}
		}
		c := caps[name]
		statuses = append(statuses, ProviderKeyStatus{
			Name:        name,
			DisplayName: name.DisplayName(),
			Fields:      CredentialFields(name),
			HasKey:      hasKey,
			Status:      status,
			AccessTier:  c.Tier,
			HelpURL:     c.HelpURL,
			RateLimit:   c.RateLimit,
		})
	}
	return statuses, nil
}
