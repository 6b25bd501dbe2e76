package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	maxRetries           = 3
	initialDelay         = 1 * time.Second
	noTextSentinel       = "NO_TEXT_FOUND"
)

// OpenRouterEngine performs OCR through a vision model on OpenRouter.
type OpenRouterEngine struct {
	APIKey    string
	Model     string
	Providers []string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
	// Client defaults to a 60s-timeout client.
	Client *http.Client
}

type orMessage struct {
	Role    string      `json:"role"`
	Content []orContent `json:"content"`
}

type orContent struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *orImageURL `json:"image_url,omitempty"`
}

type orImageURL struct {
	URL string `json:"url"`
}

type orProviderPrefs struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type orChatRequest struct {
	Model       string           `json:"model"`
	Messages    []orMessage      `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Provider    *orProviderPrefs `json:"provider,omitempty"`
}

type orChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Recognize reads the image, ships it as a base64 data URL, and returns the
// model's raw extracted text. A NO_TEXT_FOUND reply maps to empty text.
func (e *OpenRouterEngine) Recognize(ctx context.Context, imagePath string, languages []string) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("API key is required")
	}
	if e.Model == "" {
		return "", fmt.Errorf("model is required")
	}

	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	payload, err := json.Marshal(e.buildRequest(imageData, languages))
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	delay := initialDelay
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}
		text, retryable, err := e.doRequest(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (e *OpenRouterEngine) buildRequest(imageData []byte, languages []string) orChatRequest {
	prompt := "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
		"- No formatting\n" +
		"- No XML/HTML tags\n" +
		"- No markdown\n" +
		"- No explanations\n" +
		"- Preserve line breaks accurately from the visual layout.\n" +
		"If no text found, return '" + noTextSentinel + "'"
	if len(languages) > 0 {
		prompt += "\nThe text is expected to be in: " + strings.Join(languages, ", ")
	}

	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
	return orChatRequest{
		Model: e.Model,
		Messages: []orMessage{{
			Role: "user",
			Content: []orContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &orImageURL{URL: imageURL}},
			},
		}},
		Temperature: 0.1,
		MaxTokens:   2000,
		Provider:    e.providerPrefs(),
	}
}

func (e *OpenRouterEngine) providerPrefs() *orProviderPrefs {
	if len(e.Providers) == 0 {
		return nil
	}
	allowFallbacks := false
	return &orProviderPrefs{Order: e.Providers, AllowFallbacks: &allowFallbacks}
}

func (e *OpenRouterEngine) doRequest(ctx context.Context, payload []byte) (text string, retryable bool, err error) {
	url := e.BaseURL
	if url == "" {
		url = defaultOpenRouterURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed orChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == noTextSentinel {
		return "", false, nil
	}
	return content, false, nil
}
