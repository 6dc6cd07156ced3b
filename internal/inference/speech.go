package inference

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"captionapi/internal/config"
)

// maxTokenRunes is the longest text the translate_tts endpoint accepts per request.
const maxTokenRunes = 100

// GoogleSpeech speaks text through Google Translate's text-to-speech endpoint,
// the same service gTTS uses. Long text is split into tokens that are
// fetched one by one and concatenated into a single MP3 stream.
type GoogleSpeech struct {
	client *resty.Client
	url    string
	slow   bool
}

// NewGoogleSpeech builds a synthesizer. Without an explicit URL the endpoint is
// derived from the configured top level domain.
func NewGoogleSpeech(cfg config.SpeechConfig) *GoogleSpeech {
	url := cfg.URL
	if url == "" {
		tld := cfg.TLD
		if tld == "" {
			tld = "com"
		}
		url = "https://translate.google." + tld + "/translate_tts"
	}
	c := resty.NewWithClient(newHTTPClient(cfg.Timeout)).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)").
		SetHeader("Referer", "http://translate.google.com/")
	return &GoogleSpeech{client: c, url: url, slow: cfg.Slow}
}

// Synthesize returns MP3 audio of text spoken in lang.
func (s *GoogleSpeech) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	tokens := tokenize(text, maxTokenRunes)
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}
	speed := "1"
	if s.slow {
		speed = "0.3"
	}

	var audio bytes.Buffer
	for i, tok := range tokens {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ie":       "UTF-8",
				"client":   "tw-ob",
				"q":        tok,
				"tl":       lang,
				"total":    strconv.Itoa(len(tokens)),
				"idx":      strconv.Itoa(i),
				"textlen":  strconv.Itoa(utf8.RuneCountInString(tok)),
				"ttsspeed": speed,
			}).
			Get(s.url)
		if err != nil {
			return nil, fmt.Errorf("tts request %d/%d: %w", i+1, len(tokens), err)
		}
		if resp.IsError() {
			return nil, statusError("tts", resp)
		}
		audio.Write(resp.Body())
	}
	if audio.Len() == 0 {
		return nil, fmt.Errorf("tts: %w", ErrEmptyResult)
	}
	return audio.Bytes(), nil
}

// NewSynthesizer builds the speech synthesizer.
func NewSynthesizer(cfg config.SpeechConfig) Synthesizer {
	return NewGoogleSpeech(cfg)
}

func isBreak(r rune) bool {
	switch r {
	case '.', ',', '?', '!', ';', ':', '¿', '¡', '…', '।', '॥', '\n':
		return true
	}
	return false
}

// tokenize splits text into pieces of at most max runes. Sentence punctuation
// (including the Devanagari danda) ends a piece; oversized pieces are split on
// whitespace and, failing that, cut hard.
func tokenize(text string, max int) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if isBreak(r) {
			sentences = append(sentences, cur.String())
			cur.Reset()
		}
	}
	sentences = append(sentences, cur.String())

	var out []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" || isPunctuationOnly(s) {
			continue
		}
		out = append(out, splitLong(s, max)...)
	}
	return out
}

func isPunctuationOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSpace(r) && !isBreak(r) {
			return false
		}
	}
	return true
}

func splitLong(s string, max int) []string {
	if utf8.RuneCountInString(s) <= max {
		return []string{s}
	}
	var out []string
	var cur []rune
	flush := func() {
		if t := strings.TrimSpace(string(cur)); t != "" {
			out = append(out, t)
		}
		cur = cur[:0]
	}
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > max {
			flush()
			out = append(out, string(w[:max]))
			w = w[max:]
		}
		if len(cur) > 0 && len(cur)+1+len(w) > max {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	flush()
	return out
}
