// Package vision extracts card settlement calendars from images with an
// OpenAI-compatible vision model.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finsync/backend/internal/domain/shared"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultModel     = openai.GPT4o
	DefaultMaxTokens = 2000
	temperature      = 0.1
)

// calendarPrompt asks for the net-amount tab only; the output keys match
// cardreceivable.Calendar.
const calendarPrompt = `Analyze this card acquirer settlement calendar and extract ONLY the net amounts.

1. Use the "net amounts" tab shown in the image.
2. Extract only days whose amount is greater than zero.
3. The merchant number is printed on the right side of the calendar.
4. The month and year are printed at the center of the calendar.

Return valid JSON in exactly this shape, with no explanation and no markdown:

{"reference_month": "YYYY-MM", "merchant_code": "merchant number", "entries": [{"date": "YYYY-MM-DD", "amount": 1234.56}]}

Amounts are plain decimal numbers with a dot separator: R$ 5.830,47 becomes 5830.47.
Skip days showing R$ 0,00.`

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor turns a calendar image into the raw JSON extraction payload.
// The payload is untrusted; callers validate it.
type Extractor struct {
	client    chatCompleter
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewExtractor builds an Extractor from configuration
func NewExtractor(cfg config.VisionConfig, logger *zap.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return newExtractor(openai.NewClientWithConfig(clientCfg), cfg, logger), nil
}

func newExtractor(client chatCompleter, cfg config.VisionConfig, logger *zap.Logger) *Extractor {
	e := &Extractor{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.maxTokens <= 0 {
		e.maxTokens = DefaultMaxTokens
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Extract sends the image to the model and returns its answer
func (e *Extractor) Extract(ctx context.Context, image []byte, contentType string) ([]byte, error) {
	if len(image) == 0 {
		return nil, shared.ValidationFailed("image is empty")
	}
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: calendarPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		}},
	})
	if err != nil {
		return nil, shared.SourceUnavailable(fmt.Errorf("vision extraction: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, shared.ValidationFailed("vision model returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, shared.ValidationFailed("vision model returned an empty answer")
	}
	e.logger.Debug("calendar extracted",
		zap.String("model", e.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return []byte(content), nil
}
