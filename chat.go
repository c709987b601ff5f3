package orakle

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orakle-run/orakle/conversation"
	"github.com/orakle-run/orakle/events"
	"github.com/orakle-run/orakle/llm"
	"github.com/orakle-run/orakle/matcher"
	"github.com/orakle-run/orakle/skills"
)

// Engine wires C1–C5 together into a single Turn entry point; it is the
// object cmd/orakled's main constructs once and reuses across requests.
// The HTTP façade (C7) owns per-turn state; Engine owns nothing beyond its
// long-lived collaborators.
type Engine struct {
	Registry     *skills.Registry
	Dispatcher   *Dispatcher
	Primary      llm.Provider
	PrimaryModel string
	Logger       *slog.Logger
}

// Turn drives one full request/response cycle: it opens the primary LLM
// stream, feeds it through the stream parser, and fans directives out to
// the dispatcher, multiplexing everything onto queue.
func (e *Engine) Turn(ctx context.Context, req ChatRequest) *events.Queue {
	queue := events.NewQueue()
	go e.run(ctx, req, queue)
	return queue
}

func (e *Engine) run(ctx context.Context, req ChatRequest, queue *events.Queue) {
	defer queue.Close()

	catalog := e.Registry.Catalog()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: narrationSystemPrompt},
		{Role: llm.RoleUser, Content: req.Message},
	}
	stream, err := e.Primary.Stream(ctx, llm.Request{Model: e.PrimaryModel, Messages: messages})
	if err != nil {
		queue.Push(NewSignalEvent(EventError, map[string]string{"message": err.Error()}))
		return
	}
	defer stream.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	sink := &turnSink{
		ctx:            groupCtx,
		queue:          queue,
		conversationID: req.ConversationID,
		catalog:        catalog,
		dispatch:       e.Dispatcher,
		group:          group,
	}
	parser := NewStreamParser(sink)

	for {
		if ctx.Err() != nil {
			break
		}
		chunk, err := stream.Recv()
		if err != nil {
			break
		}
		if chunk.Delta != "" {
			parser.Feed(chunk.Delta)
		}
	}
	parser.Close()

	_ = group.Wait()

	if ctx.Err() != nil {
		queue.Abort()
	}
}

const narrationSystemPrompt = `You are a helpful assistant. When you need to use a tool, emit a directive of the form:
<<<ORAKLE natural language description of what you need ORAKLE
and continue your narration normally around it. Only one directive per tool use.`

// turnSink adapts StreamParser callbacks into multiplexed events and
// dispatcher invocations.
type turnSink struct {
	ctx            context.Context
	queue          *events.Queue
	conversationID string
	catalog        *Catalog
	dispatch       *Dispatcher
	group          *errgroup.Group
}

func (s *turnSink) Narrative(text string) {
	s.queue.Push(NewStreamEvent(text, StreamFlags{}))
}

func (s *turnSink) Directive(d Directive) {
	s.group.Go(func() error {
		s.dispatch.Handle(s.ctx, s.queue, s.conversationID, d, s.catalog)
		return nil
	})
}

func (s *turnSink) IncompleteDirective(body string) {
	s.queue.Push(NewSignalEvent(EventError, map[string]string{"message": "directive unterminated at stream close"}))
}

// NewEngine wires an Engine from its collaborators, following the
// constructor-assembles-the-pipeline shape used throughout this module.
func NewEngine(
	registry *skills.Registry,
	primary llm.Provider,
	primaryModel string,
	matcherProvider llm.Provider,
	matcherModel string,
	matcherCfg matcher.Config,
	interpreter llm.Provider,
	interpreterModel string,
	skillsBaseURL string,
	convStore conversation.Store,
	historyWindow int,
	skillTimeout time.Duration,
	logger *slog.Logger,
) *Engine {
	m := matcher.New(registry, matcherProvider, matcherModel, matcherCfg)
	dispatcher := &Dispatcher{
		Matcher:          m,
		SkillsBaseURL:    skillsBaseURL,
		HTTPClient:       &http.Client{Timeout: skillTimeout + 5*time.Second},
		Interpreter:      interpreter,
		InterpreterModel: interpreterModel,
		Conversation:     convStore,
		HistoryWindow:    historyWindow,
		SkillTimeout:     skillTimeout,
	}
	return &Engine{
		Registry:     registry,
		Dispatcher:   dispatcher,
		Primary:      primary,
		PrimaryModel: primaryModel,
		Logger:       logger,
	}
}
