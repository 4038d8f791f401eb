// Package provider defines the capability contract satisfied by each AI
// provider integration and a registry keyed by provider name. The worker
// resolves integrations through the registry, so new providers are added
// by registering an implementation, without touching the worker.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/secrets"
)

// Result is the outcome of a successful generation call: the content
// artifact and the tokens the call consumed. The worker attributes the
// token cost to the assignment's account in the same transaction that
// persists the content.
type Result struct {
	Content    *domain.Content
	TokensUsed int64
}

// Usage reports an account's consumption as seen by the provider.
type Usage struct {
	Available bool  `json:"available"`
	Limit     int64 `json:"limit"`
	Used      int64 `json:"used"`
}

// Integration is the capability contract each provider implementation
// satisfies. Credentials arrive encrypted and are decrypted only inside
// the integration, at the moment of use.
type Integration interface {
	// Authenticate verifies the credentials against the live provider.
	// Used for administrative connection testing, not in the worker path.
	Authenticate(ctx context.Context, encryptedCredentials string, provider *domain.Provider) error

	// Generate executes the content-generation call for the task using the
	// account's credentials. Returns the generated artifact and token cost,
	// or an error.
	Generate(ctx context.Context, task *domain.Task, provider *domain.Provider, account *domain.Account) (*Result, error)

	// CheckUsage reports token consumption as known to the provider.
	CheckUsage(ctx context.Context, encryptedCredentials string, provider *domain.Provider) (*Usage, error)
}

// credentials is the decrypted payload stored for an account.
type credentials struct {
	APIKey string `json:"api_key"`
}

// decryptAPIKey opens the encrypted blob and extracts the API key.
func decryptAPIKey(cipher *secrets.Cipher, encrypted string) (string, error) {
	plaintext, err := cipher.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("credential decryption failed: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
		return "", fmt.Errorf("credential parsing failed: %w", err)
	}
	if creds.APIKey == "" {
		return "", fmt.Errorf("credentials carry no api_key")
	}

	return creds.APIKey, nil
}

// taskParams decodes the provider-specific parameters a task may carry in
// its description. An empty or non-JSON description yields an empty map;
// integrations fall back to the task title.
func taskParams(task *domain.Task) map[string]any {
	params := map[string]any{}
	if task.Description == "" {
		return params
	}
	if err := json.Unmarshal([]byte(task.Description), &params); err != nil {
		return map[string]any{}
	}
	return params
}

// stringParam returns params[key] if it is a non-empty string, otherwise
// fallback.
func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
