// Package openai adapts github.com/sashabaranov/go-openai to the llm.Provider
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/orakle-run/orakle/llm"
	oai "github.com/sashabaranov/go-openai"
)

// Provider wraps an *oai.Client.
type Provider struct {
	client *oai.Client
}

// New wraps an existing configured client (so callers can point it at
// OpenAI itself or any OpenAI-compatible base URL).
func New(client *oai.Client) *Provider {
	return &Provider{client: client}
}

// NewWithKey builds a Provider against the default OpenAI API endpoint.
func NewWithKey(apiKey string) *Provider {
	return &Provider{client: oai.NewClient(apiKey)}
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	r := p.buildRequest(req)
	r.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	return &streamWrapper{stream: stream}, nil
}

func (p *Provider) buildRequest(req llm.Request) oai.ChatCompletionRequest {
	messages := make([]oai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, oai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	r := oai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Kind == "json_object" {
		r.ResponseFormat = &oai.ChatCompletionResponseFormat{
			Type: oai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return r
}

type streamWrapper struct {
	stream *oai.ChatCompletionStream
}

func (s *streamWrapper) Recv() (llm.Chunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		if err == io.EOF {
			return llm.Chunk{}, io.EOF
		}
		return llm.Chunk{}, fmt.Errorf("openai stream recv: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Chunk{}, nil
	}
	choice := resp.Choices[0]
	return llm.Chunk{
		Delta:        choice.Delta.Content,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func (s *streamWrapper) Close() error {
	s.stream.Close()
	return nil
}
