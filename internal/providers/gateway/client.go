// Package gateway wraps the OpenAI-compatible chat completions endpoint that
// fronts the render, OCR, and brief-parsing models.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://ai.gateway.lovable.dev/v1"
	defaultRenderModel = "google/gemini-2.5-flash-image-preview"
	defaultTextModel   = "google/gemini-2.5-flash"
)

// Options controls how the gateway client is configured.
type Options struct {
	BaseURL     string
	APIKey      string
	RenderModel string
	OCRModel    string
	ParserModel string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Client issues chat-completion calls against the AI gateway.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	renderModel string
	ocrModel    string
	parserModel string
}

// NewClient constructs a gateway client with sane defaults.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient:  client,
		baseURL:     base,
		token:       strings.TrimSpace(opts.APIKey),
		renderModel: defaulted(opts.RenderModel, defaultRenderModel),
		ocrModel:    defaulted(opts.OCRModel, defaultTextModel),
		parserModel: defaulted(opts.ParserModel, defaultTextModel),
	}
}

func defaulted(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// Configured reports whether an API key is present. The batch coordinator
// fails a whole project up front when it is not.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Message is one chat turn. Content is either a plain string or a slice of
// TextPart/ImagePart values for multimodal turns.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// TextPart is a text segment of a multimodal message.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ImagePart references an image, by URL or data URL, in a multimodal message.
type ImagePart struct {
	Type     string   `json:"type"`
	ImageURL ImageRef `json:"image_url"`
}

// ImageRef holds the image location of an ImagePart.
type ImageRef struct {
	URL string `json:"url"`
}

// Text builds a text segment.
func Text(s string) TextPart {
	return TextPart{Type: "text", Text: s}
}

// Image builds an image segment.
func Image(url string) ImagePart {
	return ImagePart{Type: "image_url", ImageURL: ImageRef{URL: url}}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Modalities  []string  `json:"modalities,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL ImageRef `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// RenderImage asks the image-edit model to apply the instruction to the
// source image and returns the rendered image bytes. A response without an
// image payload is an error; the orchestrator treats it as an attempt
// failure.
func (c *Client) RenderImage(ctx context.Context, instruction, imageURL string) ([]byte, error) {
	if c == nil || c.token == "" {
		return nil, errors.New("gateway: api key is missing")
	}
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("gateway: source image url required")
	}
	resp, err := c.complete(ctx, chatRequest{
		Model: c.renderModel,
		Messages: []Message{{
			Role:    "user",
			Content: []any{Text(instruction), Image(imageURL)},
		}},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Images) == 0 {
		return nil, errors.New("gateway: no image returned")
	}
	return DecodeDataURL(resp.Choices[0].Message.Images[0].ImageURL.URL)
}

// ExtractText runs the OCR model over a rendered image and returns the raw
// extracted text.
func (c *Client) ExtractText(ctx context.Context, instruction string, image []byte) (string, error) {
	if c == nil || c.token == "" {
		return "", errors.New("gateway: api key is missing")
	}
	resp, err := c.complete(ctx, chatRequest{
		Model: c.ocrModel,
		Messages: []Message{{
			Role:    "user",
			Content: []any{Text(instruction), Image(EncodeDataURL("image/jpeg", image))},
		}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("gateway: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteText sends a plain-text conversation to the parser model and
// returns the assistant content. A non-positive temperature is omitted.
func (c *Client) CompleteText(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if c == nil || c.token == "" {
		return "", errors.New("gateway: api key is missing")
	}
	req := chatRequest{Model: c.parserModel, Messages: messages}
	if temperature > 0 {
		req.Temperature = &temperature
	}
	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("gateway: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("gateway: http %d", resp.StatusCode)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Error.Message != "" {
			return nil, fmt.Errorf("gateway error: %s", out.Error.Message)
		}
		return nil, fmt.Errorf("gateway: http %d", resp.StatusCode)
	}
	return &out, nil
}

// EncodeDataURL wraps raw bytes as a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL decodes a base64 data URL, or bare base64 content, into raw
// bytes.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("gateway: empty image payload")
	}
	if idx := strings.Index(s, ","); idx >= 0 && strings.HasPrefix(s, "data:") {
		s = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("gateway: decode image payload: %w", err)
	}
	return data, nil
}
