package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/secrets"
)

const anthropicVersion = "2023-06-01"

// ClaudeIntegration generates code content through Anthropic's API.
type ClaudeIntegration struct {
	cipher     *secrets.Cipher
	httpClient *http.Client
	contentDir string
}

// NewClaudeIntegration creates the Anthropic integration. Generated code
// files are written under contentDir.
func NewClaudeIntegration(cipher *secrets.Cipher, contentDir string) *ClaudeIntegration {
	return &ClaudeIntegration{
		cipher:     cipher,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		contentDir: contentDir,
	}
}

// Authenticate verifies the API key with a models list request.
func (c *ClaudeIntegration) Authenticate(ctx context.Context, encryptedCredentials string, provider *domain.Provider) error {
	apiKey, err := decryptAPIKey(c.cipher, encryptedCredentials)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.APIEndpoint+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic auth request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anthropic auth failed with status %d", resp.StatusCode)
	}
	return nil
}

type anthropicMessageRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Generate produces code for the task prompt, stored both inline and as a
// file artifact.
func (c *ClaudeIntegration) Generate(ctx context.Context, task *domain.Task, provider *domain.Provider, account *domain.Account) (*Result, error) {
	apiKey, err := decryptAPIKey(c.cipher, account.Credentials)
	if err != nil {
		return nil, err
	}

	params := taskParams(task)
	prompt := stringParam(params, "prompt", task.Title)
	language := stringParam(params, "language", "python")
	model := stringParam(params, "model", "claude-sonnet-4-20250514")

	body := anthropicMessageRequest{
		Model:     model,
		MaxTokens: 4096,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: fmt.Sprintf("Please write %s code for the following task: %s. Include comments and explanations.", language, prompt),
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.APIEndpoint+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic message request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("anthropic message request failed with status %d: %s", resp.StatusCode, respBody)
	}

	var msgResp anthropicMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("failed to decode message response: %w", err)
	}

	var code string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			code += block.Text
		}
	}
	if code == "" {
		return nil, fmt.Errorf("anthropic returned no content")
	}

	filePath, err := c.writeCodeFile(task.ID.String()+"."+language, code)
	if err != nil {
		return nil, err
	}

	content, err := domain.NewContent(
		task.ID,
		fmt.Sprintf("Generated %s code for %s", language, task.Title),
		domain.ContentTypeCode,
		code,
		filePath,
		map[string]any{
			"prompt":   prompt,
			"language": language,
			"provider": "CLAUDE",
		},
		domain.ContentStatusFinal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build content artifact: %w", err)
	}

	tokens := msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens
	if tokens == 0 {
		// Older API versions omit usage; fall back to a length estimate.
		tokens = int64(len(prompt) + len(code))
	}

	return &Result{Content: content, TokensUsed: tokens}, nil
}

// CheckUsage reports a static budget. Anthropic exposes no direct usage
// endpoint; actual consumption is tracked in the account store.
func (c *ClaudeIntegration) CheckUsage(ctx context.Context, encryptedCredentials string, provider *domain.Provider) (*Usage, error) {
	if _, err := decryptAPIKey(c.cipher, encryptedCredentials); err != nil {
		return nil, err
	}
	return &Usage{Available: true, Limit: 100000, Used: 0}, nil
}

func (c *ClaudeIntegration) writeCodeFile(filename, code string) (string, error) {
	if err := os.MkdirAll(c.contentDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	filePath := filepath.Join(c.contentDir, filename)
	if err := os.WriteFile(filePath, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("failed to write code file: %w", err)
	}

	return filePath, nil
}
