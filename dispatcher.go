package orakle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orakle-run/orakle/conversation"
	"github.com/orakle-run/orakle/events"
	"github.com/orakle-run/orakle/llm"
	"github.com/orakle-run/orakle/matcher"
)

// Dispatcher implements C4: for each directive it consults the matcher,
// invokes the chosen skill over HTTP, and opens a second LLM stream to
// interpret the result for the user.
type Dispatcher struct {
	Matcher          *matcher.Matcher
	SkillsBaseURL    string
	HTTPClient       *http.Client
	Interpreter      llm.Provider
	InterpreterModel string
	Conversation     conversation.Store
	HistoryWindow    int
	SkillTimeout     time.Duration
}

// Handle runs the full six-step pipeline for one directive, pushing events
// onto queue as it goes. It never returns an error: all failures are
// reported as `error` events on the queue, localized to this dispatch, per
// SPEC_FULL.md §7's propagation policy.
func (d *Dispatcher) Handle(ctx context.Context, queue *events.Queue, conversationID string, directive Directive, catalog *Catalog) {
	queue.Push(NewSignalEvent(EventLoading, map[string]string{"state": "start"}))

	decision, err := d.Matcher.Match(ctx, directive.Raw)
	if err != nil {
		queue.Push(NewSignalEvent(EventError, map[string]string{"message": err.Error()}))
		queue.Push(NewSignalEvent(EventLoading, map[string]string{"state": "stop"}))
		return
	}
	if !decision.Resolved() {
		queue.Push(NewSignalEvent(EventError, map[string]string{"message": decision.ErrorMsg}))
		queue.Push(NewSignalEvent(EventLoading, map[string]string{"state": "stop"}))
		return
	}

	skill, ok := catalog.ByID(decision.SkillID)
	if !ok {
		queue.Push(NewSignalEvent(EventError, map[string]string{"message": "selected skill is no longer in the catalog"}))
		queue.Push(NewSignalEvent(EventLoading, map[string]string{"state": "stop"}))
		return
	}

	queue.Push(NewSignalEvent(EventCommand, map[string]string{"name": skill.ID}))
	queue.Push(NewStreamEvent(decision.SkillIntention, StreamFlags{Skill: true}))

	if ctx.Err() != nil {
		return
	}

	result, err := d.callSkill(ctx, skill, decision.Parameters)
	if err != nil {
		queue.Push(NewSignalEvent(EventError, map[string]string{"message": err.Error()}))
		queue.Push(NewSignalEvent(EventCompleted, map[string]any{}))
		queue.Push(NewSignalEvent(EventLoading, map[string]string{"state": "stop"}))
		return
	}

	if err := d.interpret(ctx, queue, conversationID, directive, skill, result); err != nil {
		queue.Push(NewSignalEvent(EventError, map[string]string{"message": err.Error()}))
	}

	queue.Push(NewSignalEvent(EventCompleted, map[string]any{}))
	queue.Push(NewSignalEvent(EventLoading, map[string]string{"state": "stop"}))
}

func (d *Dispatcher) callSkill(ctx context.Context, skill Skill, params map[string]any) (json.RawMessage, error) {
	timeout := d.SkillTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode skill parameters: %w", err)
	}

	method := skill.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(callCtx, method, d.SkillsBaseURL+skill.Route, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("skill call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read skill response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("skill %s returned status %d", skill.ID, resp.StatusCode)
	}
	return respBody, nil
}

func (d *Dispatcher) interpret(ctx context.Context, queue *events.Queue, conversationID string, directive Directive, skill Skill, result json.RawMessage) error {
	history := d.loadHistory(ctx, conversationID)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You explain a skill's structured result to the user in natural language, concisely and in context."},
	}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: llm.Role(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf("The user asked: %q\nThe skill %q returned: %s\nExplain this result to the user.",
			directive.Raw, skill.Name, string(result)),
	})

	stream, err := d.Interpreter.Stream(ctx, llm.Request{Model: d.InterpreterModel, Messages: messages})
	if err != nil {
		return fmt.Errorf("interpretation call failed: %w", err)
	}
	defer stream.Close()

	var full bytes.Buffer
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunk, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("interpretation stream: %w", err)
		}
		if chunk.Delta == "" {
			continue
		}
		full.WriteString(chunk.Delta)
		queue.Push(NewStreamEvent(chunk.Delta, StreamFlags{}))
	}

	if d.Conversation != nil {
		_ = d.Conversation.Append(ctx, conversationID, conversation.Turn{
			Role: "assistant", Content: full.String(), Timestamp: time.Now(),
		})
	}
	return nil
}

func (d *Dispatcher) loadHistory(ctx context.Context, conversationID string) []conversation.Turn {
	if d.Conversation == nil || conversationID == "" {
		return nil
	}
	turns, err := d.Conversation.Recent(ctx, conversationID, d.HistoryWindow)
	if err != nil {
		return nil
	}
	return turns
}
