// Package ai talks to the local Ollama runtime. It is the only package
// touching the model service; everything upstream of it is model-agnostic.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrModelUnavailable means the model service could not be reached at
	// call start. Distinct from a mid-stream failure.
	ErrModelUnavailable = errors.New("model service unavailable")
	// ErrStreamInterrupted means the stream broke after generation began;
	// fragments received so far are still valid partial output.
	ErrStreamInterrupted = errors.New("model stream interrupted")
)

type GenerateConfig struct {
	BaseURL string
	Model   string
}

// Stream is a lazy, finite, non-restartable sequence of answer fragments.
// Recv returns io.EOF when generation completes. Close releases the
// underlying connection and may be called at any point to abandon the
// stream early.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type OllamaClient struct {
	httpClient *http.Client
}

func NewOllamaClient(timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate submits prompt to /api/generate and returns the fragment
// stream. A connection or protocol failure before the first chunk maps
// to ErrModelUnavailable; the caller owns closing the returned stream.
func (c *OllamaClient) Generate(ctx context.Context, cfg GenerateConfig, prompt string) (Stream, error) {
	body, err := json.Marshal(generateRequest{
		Model:  cfg.Model,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return &generateStream{
		body: resp.Body,
		dec:  json.NewDecoder(resp.Body),
	}, nil
}

type generateStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	done bool
}

func (s *generateStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		var chunk generateChunk
		if err := s.dec.Decode(&chunk); err != nil {
			s.done = true
			_ = s.body.Close()
			if errors.Is(err, io.EOF) {
				// The runtime closed the connection without a done marker.
				return "", fmt.Errorf("%w: stream ended early", ErrStreamInterrupted)
			}
			return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
		}
		if chunk.Error != "" {
			s.done = true
			_ = s.body.Close()
			return "", fmt.Errorf("%w: %s", ErrStreamInterrupted, chunk.Error)
		}
		if chunk.Done {
			s.done = true
			_ = s.body.Close()
			if chunk.Response != "" {
				return chunk.Response, nil
			}
			return "", io.EOF
		}
		if chunk.Response == "" {
			continue
		}
		return chunk.Response, nil
	}
}

func (s *generateStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.body.Close()
}
