package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"

	"captionapi/internal/config"
)

const captionPrompt = "Describe this image in one short English sentence."

// HTTPCaptioner calls a vision-to-text model served over HTTP, e.g. a Hugging
// Face inference endpoint hosting nlpconnect/vit-gpt2-image-captioning.
type HTTPCaptioner struct {
	client    *resty.Client
	url       string
	model     string
	maxLength int
	numBeams  int
}

// captionRequest carries the model id for routers that host several models
// behind one URL. Dedicated endpoints ignore it.
type captionRequest struct {
	Model      string            `json:"model,omitempty"`
	Inputs     string            `json:"inputs"`
	Parameters captionParameters `json:"parameters"`
}

type captionParameters struct {
	MaxLength int `json:"max_length,omitempty"`
	NumBeams  int `json:"num_beams,omitempty"`
}

// NewHTTPCaptioner builds a captioner for the endpoint in cfg.
func NewHTTPCaptioner(cfg config.CaptionConfig) (*HTTPCaptioner, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("captioner: %w", ErrEndpointRequired)
	}
	return &HTTPCaptioner{
		client:    newRESTClient(cfg.Timeout, cfg.Token),
		url:       cfg.URL,
		model:     cfg.Model,
		maxLength: cfg.MaxLength,
		numBeams:  cfg.NumBeams,
	}, nil
}

// Caption sends the base64 encoded image and returns the generated text.
func (c *HTTPCaptioner) Caption(ctx context.Context, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyInput
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(captionRequest{
			Model:      c.model,
			Inputs:     base64.StdEncoding.EncodeToString(image),
			Parameters: captionParameters{MaxLength: c.maxLength, NumBeams: c.numBeams},
		}).
		Post(c.url)
	if err != nil {
		return "", fmt.Errorf("caption request: %w", err)
	}
	if resp.IsError() {
		return "", statusError("captioner", resp)
	}
	text, err := decodeGenerated(resp.Body(), "generated_text")
	if err != nil {
		return "", fmt.Errorf("captioner: %w", err)
	}
	return text, nil
}

// OpenAICaptioner captions images with a hosted multimodal chat model.
type OpenAICaptioner struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAICaptioner builds a captioner backed by the OpenAI chat completions API.
// A non-empty cfg.URL overrides the API base URL.
func NewOpenAICaptioner(cfg config.CaptionConfig, oa config.OpenAIConfig) (*OpenAICaptioner, error) {
	if oa.APIKey == "" {
		return nil, fmt.Errorf("captioner: openai api key is required")
	}
	occ := openai.DefaultConfig(oa.APIKey)
	if cfg.URL != "" {
		occ.BaseURL = strings.TrimRight(cfg.URL, "/")
	}
	occ.HTTPClient = newHTTPClient(cfg.Timeout)

	maxTokens := cfg.MaxLength * 4
	if maxTokens <= 0 {
		maxTokens = 64
	}
	return &OpenAICaptioner{
		client:    openai.NewClientWithConfig(occ),
		model:     oa.Model,
		maxTokens: maxTokens,
	}, nil
}

// Caption sends the image inline as a data URL.
func (c *OpenAICaptioner) Caption(ctx context.Context, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyInput
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai caption: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai caption: %w", ErrEmptyResult)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai caption: %w", ErrEmptyResult)
	}
	return text, nil
}

// NewCaptioner builds the captioner selected by cfg.Provider.
func NewCaptioner(cfg config.CaptionConfig, oa config.OpenAIConfig) (Captioner, error) {
	switch cfg.Provider {
	case "", "http":
		c, err := NewHTTPCaptioner(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		c, err := NewOpenAICaptioner(cfg, oa)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("captioner %q: %w", cfg.Provider, ErrUnknownProvider)
	}
}
