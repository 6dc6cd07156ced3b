// Package inference wraps the external models the service depends on: an image
// captioning model, an English to Indic translation model and a text-to-speech
// service. Each concern is an interface with one or more providers; providers
// are built once at startup and are safe for concurrent use.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"captionapi/internal/model"
)

var (
	// ErrEmptyResult is returned when a model answers successfully but with no text or audio.
	ErrEmptyResult = errors.New("model returned an empty result")
	// ErrEmptyInput is returned when there is nothing to send to the model.
	ErrEmptyInput = errors.New("input is empty")
	// ErrEndpointRequired is returned when a provider is configured without a URL.
	ErrEndpointRequired = errors.New("inference endpoint url is required")
	// ErrUnknownProvider is returned by the constructors for unsupported provider names.
	ErrUnknownProvider = errors.New("unknown inference provider")
)

// Captioner produces an English description of an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte, contentType string) (string, error)
}

// Translator converts English text into a supported Indic language.
type Translator interface {
	Translate(ctx context.Context, text string, target model.Language) (string, error)
}

// Synthesizer converts text into MP3 audio spoken in lang (a two letter code).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// StatusError reports a non-2xx answer from a model server.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, body)
}

// newHTTPClient returns an instrumented client so model calls show up as child spans.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func newRESTClient(timeout time.Duration, token string) *resty.Client {
	c := resty.NewWithClient(newHTTPClient(timeout)).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func statusError(service string, resp *resty.Response) error {
	return &StatusError{Service: service, StatusCode: resp.StatusCode(), Body: resp.String()}
}

// decodeGenerated pulls field out of a model server answer. Inference servers
// answer either with a list of generations or with a single object.
func decodeGenerated(body []byte, field string) (string, error) {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", ErrEmptyResult
		}
		return stringField(list[0], field)
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	return stringField(obj, field)
}

func stringField(m map[string]any, field string) (string, error) {
	s, _ := m[field].(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyResult
	}
	return s, nil
}
