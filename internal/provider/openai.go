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

// imageTokenCost is the flat token cost booked per image generation; the
// OpenAI API does not report per-image token usage.
const imageTokenCost = 1000

// GPTIntegration generates image content through OpenAI's image API.
type GPTIntegration struct {
	cipher     *secrets.Cipher
	httpClient *http.Client
	contentDir string
}

// NewGPTIntegration creates the OpenAI integration. Generated images are
// written under contentDir.
func NewGPTIntegration(cipher *secrets.Cipher, contentDir string) *GPTIntegration {
	return &GPTIntegration{
		cipher:     cipher,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		contentDir: contentDir,
	}
}

// Authenticate verifies the API key with a models list request.
func (g *GPTIntegration) Authenticate(ctx context.Context, encryptedCredentials string, provider *domain.Provider) error {
	apiKey, err := decryptAPIKey(g.cipher, encryptedCredentials)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.APIEndpoint+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai auth request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai auth failed with status %d", resp.StatusCode)
	}
	return nil
}

type openaiImageRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type openaiImageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generate produces an image for the task prompt and stores it as a file
// artifact.
func (g *GPTIntegration) Generate(ctx context.Context, task *domain.Task, provider *domain.Provider, account *domain.Account) (*Result, error) {
	apiKey, err := decryptAPIKey(g.cipher, account.Credentials)
	if err != nil {
		return nil, err
	}

	params := taskParams(task)
	prompt := stringParam(params, "prompt", task.Title)
	size := stringParam(params, "size", "1024x1024")

	payload, err := json.Marshal(openaiImageRequest{Prompt: prompt, N: 1, Size: size})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.APIEndpoint+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai image request failed with status %d: %s", resp.StatusCode, body)
	}

	var imageResp openaiImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imageResp); err != nil {
		return nil, fmt.Errorf("failed to decode image response: %w", err)
	}
	if len(imageResp.Data) == 0 || imageResp.Data[0].URL == "" {
		return nil, fmt.Errorf("openai returned no image")
	}

	filePath, err := g.downloadImage(ctx, imageResp.Data[0].URL, task.ID.String()+".png")
	if err != nil {
		return nil, err
	}

	content, err := domain.NewContent(
		task.ID,
		fmt.Sprintf("Generated image for %s", task.Title),
		domain.ContentTypeImage,
		"",
		filePath,
		map[string]any{
			"prompt":   prompt,
			"size":     size,
			"provider": "GPT",
		},
		domain.ContentStatusFinal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build content artifact: %w", err)
	}

	return &Result{Content: content, TokensUsed: imageTokenCost}, nil
}

// CheckUsage reports a static budget. OpenAI exposes no direct usage
// endpoint; actual consumption is tracked in the account store.
func (g *GPTIntegration) CheckUsage(ctx context.Context, encryptedCredentials string, provider *domain.Provider) (*Usage, error) {
	if _, err := decryptAPIKey(g.cipher, encryptedCredentials); err != nil {
		return nil, err
	}
	return &Usage{Available: true, Limit: 10000, Used: 0}, nil
}

func (g *GPTIntegration) downloadImage(ctx context.Context, url, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(g.contentDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create content directory: %w", err)
	}

	filePath := filepath.Join(g.contentDir, filename)
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return filePath, nil
}
