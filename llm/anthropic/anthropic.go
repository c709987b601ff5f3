// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// llm.Provider interface.
package anthropic

import (
	"context"
	"errors"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/orakle-run/orakle/llm"
)

// Provider wraps an anthropic.Client.
type Provider struct {
	client anthropic.Client
}

// Config configures a Provider.
type Config struct {
	APIKey  string
	BaseURL string
}

// New creates a Provider from cfg.
func New(cfg Config) *Provider {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{client: anthropic.NewClient(opts...)}
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	params, system := p.buildParams(req)
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	params, system := p.buildParams(req)
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	stream := p.client.Messages.NewStreaming(ctx, params)
	return &streamWrapper{stream: stream}, nil
}

func (p *Provider) buildParams(req llm.Request) (anthropic.MessageNewParams, string) {
	var system string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}, system
}

// streamWrapper adapts anthropic's server-sent-event message stream to
// llm.Stream, surfacing only text deltas: Orakle's primary and
// interpretation sessions never need tool-use blocks from this provider.
type streamWrapper struct {
	stream *anthropic.MessageStream
}

func (s *streamWrapper) Recv() (llm.Chunk, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if variant.Delta.Type == "text_delta" {
				return llm.Chunk{Delta: variant.Delta.Text}, nil
			}
		case anthropic.MessageStopEvent:
			return llm.Chunk{FinishReason: "stop"}, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		if errors.Is(err, io.EOF) {
			return llm.Chunk{}, io.EOF
		}
		return llm.Chunk{}, err
	}
	return llm.Chunk{}, io.EOF
}

func (s *streamWrapper) Close() error {
	return s.stream.Close()
}
