// Package extract turns article clusters into structured event records by
// prompting a chat-completion model and validating what comes back. Outputs
// that fail the schema are quarantined, never dropped.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/juba-labs/hornwatch/internal/config"
	"github.com/juba-labs/hornwatch/internal/models"
)

// interCallDelay paces requests between clusters; the completion API's rate
// limit is the binding constraint on the whole pipeline.
const interCallDelay = 3 * time.Second

// Extractor drives one LLM call per pending cluster and persists the result.
type Extractor struct {
	client     *openai.Client
	model      string
	events     *models.EventStore
	quarantine *models.QuarantineStore

	delay   time.Duration
	backoff []time.Duration
}

// New builds an extractor. With no API key configured the extractor is
// disabled: Run becomes a no-op and the pipeline degrades to a plain article
// feed.
func New(cfg config.OpenAIConfig, events *models.EventStore, quarantine *models.QuarantineStore) *Extractor {
	var client *openai.Client
	if cfg.Enabled() {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		client = openai.NewClientWithConfig(oc)
	}
	return &Extractor{
		client:     client,
		model:      cfg.Model,
		events:     events,
		quarantine: quarantine,
		delay:      interCallDelay,
		backoff:    []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second},
	}
}

// Enabled reports whether the extractor may call the API.
func (e *Extractor) Enabled() bool {
	return e.client != nil
}

// Run extracts events for every cluster whose hash is not yet present in the
// events or quarantine tables. Clusters are processed strictly serially with
// a pacing delay between calls.
func (e *Extractor) Run(ctx context.Context, clusters []models.Cluster) {
	if !e.Enabled() {
		slog.Info("extract: no api key, skipping")
		return
	}

	var pending, extracted, quarantined int
	for _, c := range clusters {
		if ctx.Err() != nil {
			break
		}

		seen, err := e.events.Exists(ctx, c.Hash)
		if err != nil {
			slog.Error("extract: dedup check failed", "hash", c.Hash, "err", err)
			continue
		}
		if seen {
			continue
		}

		if pending > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.delay):
			}
		}
		pending++

		switch e.extractOne(ctx, c) {
		case outcomeExtracted:
			extracted++
		case outcomeQuarantined:
			quarantined++
		}
	}

	slog.Info("extract: cycle complete",
		"pending", pending,
		"extracted", extracted,
		"quarantined", quarantined,
	)
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeExtracted
	outcomeQuarantined
)

func (e *Extractor) extractOne(ctx context.Context, c models.Cluster) outcome {
	raw, err := e.complete(ctx, c)
	if err != nil {
		// A cancelled run leaves the cluster pending for the next cycle;
		// everything else is a real model failure and gets quarantined.
		if ctx.Err() != nil {
			return outcomeSkipped
		}
		slog.Warn("extract: llm call failed", "hash", c.Hash, "title", c.Primary().Title, "err", err)
		return e.quarantineCluster(ctx, c, raw, []string{err.Error()})
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		return e.quarantineCluster(ctx, c, raw, []string{err.Error()})
	}

	hard, soft := validate(parsed)
	if len(hard) > 0 {
		return e.quarantineCluster(ctx, c, raw, hard)
	}
	if lowConfidence(parsed) {
		return e.quarantineCluster(ctx, c, raw, soft)
	}

	event := buildEvent(c, parsed, e.model)
	inserted, err := e.events.Insert(ctx, &event)
	if err != nil {
		slog.Error("extract: event insert failed", "hash", c.Hash, "err", err)
		return outcomeSkipped
	}
	if !inserted {
		return outcomeSkipped
	}
	slog.Info("extract: event stored",
		"hash", c.Hash,
		"type", event.EventType,
		"severity", event.Severity,
		"country", event.Country,
	)
	return outcomeExtracted
}

// complete issues the chat-completion request, retrying on rate-limit
// signals with exponential backoff.
func (e *Extractor) complete(ctx context.Context, c models.Cluster) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(c)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	for attempt := 0; ; attempt++ {
		resp, err := e.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("extract: empty completion")
			}
			return resp.Choices[0].Message.Content, nil
		}
		if !isRateLimited(err) || attempt >= len(e.backoff) {
			return "", fmt.Errorf("extract: completion: %w", err)
		}

		wait := e.backoff[attempt]
		slog.Warn("extract: rate limited, backing off", "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return strings.Contains(err.Error(), "429")
}

func (e *Extractor) quarantineCluster(ctx context.Context, c models.Cluster, raw string, reasons []string) outcome {
	primary := c.Primary()
	rec := models.QuarantineRecord{
		ClusterHash:   c.Hash,
		RawOutput:     raw,
		ErrorReasons:  reasons,
		PrimaryTitle:  primary.Title,
		PrimaryURL:    primary.URL,
		Sources:       c.Sources,
		ArticleURLs:   articleURLs(c),
		ModelVersion:  e.model,
		PromptVersion: promptVersion,
	}
	if err := e.quarantine.Insert(ctx, &rec); err != nil {
		slog.Error("extract: quarantine insert failed", "hash", c.Hash, "err", err)
		return outcomeSkipped
	}
	slog.Warn("extract: output quarantined",
		"hash", c.Hash,
		"title", primary.Title,
		"reasons", reasons,
	)
	return outcomeQuarantined
}
