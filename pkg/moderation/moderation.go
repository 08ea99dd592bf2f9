package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"
)

// Moderator decides whether content may enter the pipeline. Any failure to
// get a verdict is reported unsafe alongside the error: moderation fails
// closed.
type Moderator interface {
	IsSafe(ctx context.Context, content string) (bool, error)
}

const (
	maxImageBytes = 4 << 20
	apiVersion    = "2024-09-01"
)

type analyzeResponse struct {
	CategoriesAnalysis []struct {
		Category string `json:"category"`
		Severity int    `json:"severity"`
	} `json:"categoriesAnalysis"`
}

type client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   logger.ILogger
}

func newClient(endpoint, apiKey string, log logger.ILogger) client {
	return client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   log,
	}
}

func (c *client) analyze(ctx context.Context, path string, body interface{}) (bool, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "cannot encode moderation request", err)
	}

	url := fmt.Sprintf("%s/contentsafety/%s?api-version=%s", c.endpoint, path, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return false, apperror.Wrap(apperror.KindInternal, "cannot build moderation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, apperror.Wrap(apperror.KindServiceUnavailable, "moderation service unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, apperror.Wrap(apperror.KindServiceUnavailable, "moderation response unreadable", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("moderation", "moderation service rejected request", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(payload),
		})
		return false, apperror.Newf(apperror.KindServiceUnavailable, "moderation service returned status %d", resp.StatusCode)
	}

	var verdict analyzeResponse
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return false, apperror.Wrap(apperror.KindServiceUnavailable, "moderation verdict undecodable", err)
	}

	for _, category := range verdict.CategoriesAnalysis {
		if category.Severity > 0 {
			c.logger.Info("moderation", "content flagged", map[string]interface{}{
				"category": category.Category,
				"severity": category.Severity,
			})
			return false, nil
		}
	}
	return true, nil
}

// TextModerator screens user utterances.
type TextModerator struct {
	client
}

func NewTextModerator(endpoint, apiKey string, log logger.ILogger) *TextModerator {
	return &TextModerator{client: newClient(endpoint, apiKey, log)}
}

func (m *TextModerator) IsSafe(ctx context.Context, content string) (bool, error) {
	if content == "" {
		return true, nil
	}
	return m.analyze(ctx, "text:analyze", map[string]interface{}{"text": content})
}

// ImageModerator screens base64-encoded images.
type ImageModerator struct {
	client
}

func NewImageModerator(endpoint, apiKey string, log logger.ILogger) *ImageModerator {
	return &ImageModerator{client: newClient(endpoint, apiKey, log)}
}

func (m *ImageModerator) IsSafe(ctx context.Context, content string) (bool, error) {
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return false, apperror.Wrap(apperror.KindFileProcessing, "image content is not valid base64", err)
	}
	if len(decoded) > maxImageBytes {
		return false, apperror.Newf(apperror.KindFileProcessing, "image exceeds %d byte moderation limit", maxImageBytes)
	}
	return m.analyze(ctx, "image:analyze", map[string]interface{}{
		"image": map[string]string{"content": content},
	})
}

// NoopModerator approves everything. Used when content safety is disabled by
// configuration or overrides.
type NoopModerator struct{}

func (NoopModerator) IsSafe(context.Context, string) (bool, error) { return true, nil }
