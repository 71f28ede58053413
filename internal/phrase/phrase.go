// Package phrase fetches the short romantic line shown when the fist closes.
// Phrase never fails: every problem collapses into one of two fixed lines.
package phrase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// Fixed lines used when the remote text is unusable.
const (
	// FallbackEmpty is shown when the model answered with nothing.
	FallbackEmpty = "Eres mi universo entero."
	// FallbackError is shown when the request failed.
	FallbackError = "Mi amor por ti es infinito."
)

const (
	DefaultPrompt      = "Genera una frase corta y muy romántica (máximo 10 palabras) sobre el amor y las estrellas. Solo la frase."
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.8
	DefaultTimeout     = 10 * time.Second
)

// ErrMissingAPIKey is returned by generators that have no credential.
var ErrMissingAPIKey = errors.New("no API key configured")

// Source records where a phrase came from.
type Source string

const (
	SourceRemote        Source = "remote"
	SourceFallbackEmpty Source = "fallback-empty"
	SourceFallbackError Source = "fallback-error"
)

// Result is a phrase ready for display.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Generator produces raw text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Config configures a Service.
type Config struct {
	Model       string
	Prompt      string
	// Temperature nil selects DefaultTemperature; zero is a valid setting.
	Temperature *float32
	Timeout     time.Duration
	APIKey      string
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.Temperature == nil {
		t := float32(DefaultTemperature)
		c.Temperature = &t
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Service asks a Generator for a phrase and applies the fallbacks.
type Service struct {
	gen    Generator
	config Config
}

// NewService wraps gen. Zero fields of config take the package defaults.
func NewService(gen Generator, config Config) *Service {
	return &Service{gen: gen, config: config.withDefaults()}
}

// New builds a Service backed by the Gemini API. Without an API key the
// service still works and always answers with FallbackError.
func New(ctx context.Context, config Config) *Service {
	config = config.withDefaults()

	gen, err := NewGeminiGenerator(ctx, config.APIKey, config.Model)
	if err != nil {
		log.Printf("phrase generator unavailable: %v", err)
		return NewService(Unavailable{Err: err}, config)
	}
	return NewService(gen, config)
}

// Phrase requests one phrase, bounded by the configured timeout and by ctx.
func (s *Service) Phrase(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, s.config.Prompt, *s.config.Temperature)
	if err != nil {
		log.Printf("Error generating message: %v", err)
		return Result{Text: FallbackError, Source: SourceFallbackError}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Text: FallbackEmpty, Source: SourceFallbackEmpty}
	}
	return Result{Text: text, Source: SourceRemote}
}

// Unavailable is a Generator that always fails with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) Generate(context.Context, string, float32) (string, error) {
	if u.Err == nil {
		return "", ErrMissingAPIKey
	}
	return "", u.Err
}
