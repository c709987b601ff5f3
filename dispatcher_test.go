package orakle

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orakle-run/orakle/events"
	"github.com/orakle-run/orakle/llm"
	"github.com/orakle-run/orakle/matcher"
	"github.com/orakle-run/orakle/skills"
)

type fakeInterpreter struct {
	chunks []string
}

func (f *fakeInterpreter) Complete(ctx context.Context, req llm.Request) (string, error) {
	panic("dispatcher interpretation uses Stream, not Complete")
}

func (f *fakeInterpreter) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return &fakeStream{chunks: f.chunks}, nil
}

type fakeStream struct {
	chunks []string
	pos    int
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return llm.Chunk{Delta: c}, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeMatcherProvider struct {
	response string
}

func (f *fakeMatcherProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f.response, nil
}

func (f *fakeMatcherProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	panic("not used")
}

func drainQueue(q *events.Queue) []Event {
	var out []Event
	for {
		e, ok := q.Next()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestDispatcherHandleFullPipeline(t *testing.T) {
	skillServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"temperature_c": 18}`))
	}))
	defer skillServer.Close()

	reg := skills.NewRegistry("", skills.LocalEmbed)
	catalog := &Catalog{Skills: []Skill{{ID: "weather.lookup", Name: "Weather Lookup", Route: "/weather"}}}

	m := matcher.New(reg, &fakeMatcherProvider{response: `{"skill_id":"weather.lookup","parameters":{},"skill_intention":"Checking the weather."}`},
		"gpt-4o-mini", matcher.Config{TopK: 10, SimilarityFloor: 0.0, ConfidenceFloor: 0.99})
	if err := reg.ReloadFrom(context.Background(), catalog.Skills); err != nil {
		t.Fatalf("failed to seed registry: %v", err)
	}

	d := &Dispatcher{
		Matcher:          m,
		SkillsBaseURL:    skillServer.URL,
		HTTPClient:       &http.Client{Timeout: 5 * time.Second},
		Interpreter:      &fakeInterpreter{chunks: []string{"It's ", "18°C."}},
		InterpreterModel: "gpt-4o-mini",
		SkillTimeout:     5 * time.Second,
	}

	queue := events.NewQueue()
	go func() {
		d.Handle(context.Background(), queue, "conv-1", Directive{Raw: "what's the weather"}, catalog)
		queue.Close()
	}()

	received := drainQueue(queue)
	if len(received) == 0 {
		t.Fatal("expected at least one event")
	}

	var sawCompleted bool
	var streamText string
	for _, e := range received {
		if e.Event == EventCompleted {
			sawCompleted = true
		}
		if e.Event == EventStream {
			if content, ok := e.Content.(map[string]any); ok {
				if sc, ok := content["content"].(StreamContent); ok {
					streamText += sc.Content
				}
			}
		}
	}
	if !sawCompleted {
		t.Error("expected a completed signal")
	}
	if streamText == "" {
		t.Error("expected interpretation stream text to be pushed as stream events")
	}
}
