package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultTextModel  = "gemini-2.0-flash"
)

// Client wraps the HTTP calls to the Gemini generateContent API for both
// image and text generation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	imageModel string
	textModel  string
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - GEMINI_API_KEY: required API key for the provider
//   - GEMINI_BASE_URL: optional override for the API base URL (defaults to defaultBaseURL)
//   - GEMINI_IMAGE_MODEL: optional override for the image model (defaults to defaultImageModel)
//   - GEMINI_TEXT_MODEL: optional override for the text model (defaults to defaultTextModel)
func NewClientFromEnv() (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("genai: GEMINI_API_KEY environment variable is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("genai: invalid base URL %q", baseURL)
	}

	imageModel := strings.TrimSpace(os.Getenv("GEMINI_IMAGE_MODEL"))
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	textModel := strings.TrimSpace(os.Getenv("GEMINI_TEXT_MODEL"))
	if textModel == "" {
		textModel = defaultTextModel
	}

	return &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: imageModel,
		textModel:  textModel,
	}, nil
}

// generateContentRequest matches the API payload structure.
type generateContentRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateContent struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// generateContentResponse captures the subset of fields we consume.
type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// responsePart accepts both the camelCase and snake_case inline data keys the
// API has been observed to return.
type responsePart struct {
	Text            string      `json:"text"`
	InlineData      *inlineData `json:"inlineData"`
	InlineDataSnake *inlineData `json:"inline_data"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (p responsePart) inline() *inlineData {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

// GenerateImage sends the prompt to the image model and returns the decoded
// image bytes from the first inline-data part of the response.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("genai: client is nil")
	}

	payload := generateContentRequest{
		Contents: []generateContent{{Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	decoded, err := c.generateContent(ctx, c.imageModel, payload)
	if err != nil {
		return nil, err
	}

	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			inline := part.inline()
			if inline == nil || inline.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(inline.Data)
			if err != nil {
				return nil, fmt.Errorf("genai: decode inline image data: %w", err)
			}
			return data, nil
		}
	}

	return nil, errors.New("genai: response contains no image data")
}

// GenerateText sends the prompt to the text model and returns the first text
// part, collapsed to a single line.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", errors.New("genai: client is nil")
	}

	payload := generateContentRequest{
		Contents: []generateContent{{Parts: []contentPart{{Text: prompt}}}},
	}

	decoded, err := c.generateContent(ctx, c.textModel, payload)
	if err != nil {
		return "", err
	}

	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			text := strings.TrimSpace(part.Text)
			if text != "" {
				return strings.Join(strings.Fields(text), " "), nil
			}
		}
	}

	return "", errors.New("genai: response contains no text")
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (*generateContentResponse, error) {
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		return nil, errors.New("genai: model cannot be empty")
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return nil, fmt.Errorf("genai: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(trimmedModel))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("genai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("genai: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("genai: decode response: %w", err)
	}

	return &decoded, nil
}
