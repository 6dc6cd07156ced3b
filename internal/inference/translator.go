package inference

import (
	"context"
	"fmt"
	"html"

	translate "cloud.google.com/go/translate"
	"github.com/go-resty/resty/v2"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"captionapi/internal/config"
	"captionapi/internal/model"
)

// IndicTransTranslator calls an IndicTrans2 English to Indic model served over HTTP.
type IndicTransTranslator struct {
	client    *resty.Client
	url       string
	model     string
	maxLength int
	numBeams  int
}

type translateRequest struct {
	Model      string              `json:"model,omitempty"`
	Inputs     string              `json:"inputs"`
	Parameters translateParameters `json:"parameters"`
}

type translateParameters struct {
	SrcLang   string `json:"src_lang"`
	TgtLang   string `json:"tgt_lang"`
	MaxLength int    `json:"max_length,omitempty"`
	NumBeams  int    `json:"num_beams,omitempty"`
}

// NewIndicTransTranslator builds a translator for the endpoint in cfg.
func NewIndicTransTranslator(cfg config.TranslateConfig) (*IndicTransTranslator, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("translator: %w", ErrEndpointRequired)
	}
	return &IndicTransTranslator{
		client:    newRESTClient(cfg.Timeout, cfg.Token),
		url:       cfg.URL,
		model:     cfg.Model,
		maxLength: cfg.MaxLength,
		numBeams:  cfg.NumBeams,
	}, nil
}

// Translate sends text with FLORES source/target codes and returns the translation.
func (t *IndicTransTranslator) Translate(ctx context.Context, text string, target model.Language) (string, error) {
	if text == "" {
		return "", ErrEmptyInput
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(translateRequest{
			Model:  t.model,
			Inputs: text,
			Parameters: translateParameters{
				SrcLang:   model.English.FloresCode,
				TgtLang:   target.FloresCode,
				MaxLength: t.maxLength,
				NumBeams:  t.numBeams,
			},
		}).
		Post(t.url)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	if resp.IsError() {
		return "", statusError("translator", resp)
	}
	out, err := decodeGenerated(resp.Body(), "translation_text")
	if err != nil {
		return "", fmt.Errorf("translator: %w", err)
	}
	return out, nil
}

// GoogleTranslator uses the Cloud Translation API.
type GoogleTranslator struct {
	client *translate.Client
}

// NewGoogleTranslator creates the Cloud Translation client. Without a
// credentials file the application default credentials are used.
func NewGoogleTranslator(ctx context.Context, cfg config.TranslateConfig, opts ...option.ClientOption) (*GoogleTranslator, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translate client: %w", err)
	}
	return &GoogleTranslator{client: client}, nil
}

// Translate translates text from English into target.
func (g *GoogleTranslator) Translate(ctx context.Context, text string, target model.Language) (string, error) {
	if text == "" {
		return "", ErrEmptyInput
	}
	tag, err := language.Parse(target.Code)
	if err != nil {
		return "", fmt.Errorf("invalid target language: %w", err)
	}
	res, err := g.client.Translate(ctx, []string{text}, tag, &translate.Options{
		Source: language.English,
		Format: translate.Text,
	})
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if len(res) == 0 || res[0].Text == "" {
		return "", fmt.Errorf("google translate: %w", ErrEmptyResult)
	}
	return html.UnescapeString(res[0].Text), nil
}

// Close releases the underlying client.
func (g *GoogleTranslator) Close() error {
	return g.client.Close()
}

// NewTranslator builds the translator selected by cfg.Provider.
func NewTranslator(ctx context.Context, cfg config.TranslateConfig) (Translator, error) {
	switch cfg.Provider {
	case "", "indictrans":
		t, err := NewIndicTransTranslator(cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "google":
		t, err := NewGoogleTranslator(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("translator %q: %w", cfg.Provider, ErrUnknownProvider)
	}
}
