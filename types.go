// Package orakle brokers interaction between a streaming LLM and
// out-of-process, client-hosted skills.
package orakle

import (
	"time"

	"github.com/google/uuid"
)

// Skill is a descriptor for a single client-hosted capability, as published
// by the skills host's capabilities endpoint.
type Skill struct {
	// ID uniquely identifies the skill within a catalog.
	ID string `json:"id"`

	// Name is a short human-readable label.
	Name string `json:"name"`

	// Description is used both for display and as grounding text for the
	// embedding that feeds the semantic pre-filter.
	Description string `json:"description"`

	// Parameters describes the JSON schema the skill accepts.
	Parameters SkillParameters `json:"parameters"`

	// Route is the relative path on the skills host this skill is invoked at.
	Route string `json:"route"`

	// Method is the HTTP method used to invoke the skill. Defaults to POST.
	Method string `json:"method,omitempty"`

	// Embedding is the dense vector computed from Name+Description, used by
	// the registry's similarity search. Not part of the wire format the
	// skills host publishes; populated on load.
	Embedding []float32 `json:"-"`
}

// SkillParameters is a JSON-schema-shaped description of a skill's inputs.
type SkillParameters struct {
	Type       string                    `json:"type"`
	Properties map[string]ParameterField `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// ParameterField describes a single skill parameter.
type ParameterField struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Catalog is an immutable, point-in-time snapshot of the skill registry's
// contents, published atomically so readers never observe a partial reload.
type Catalog struct {
	Skills    []Skill
	LoadedAt  time.Time
	Revision  int
}

// ByID returns the skill with the given ID, if present.
func (c *Catalog) ByID(id string) (Skill, bool) {
	if c == nil {
		return Skill{}, false
	}
	for _, s := range c.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

// Directive is a single `<<<ORAKLE ... ORAKLE` block extracted from the
// primary LLM's token stream by the stream parser.
type Directive struct {
	// Sequence is the 0-based order in which this directive closed, within
	// its turn.
	Sequence int

	// Raw is the text between the opening and closing markers, with
	// leading and trailing whitespace trimmed.
	Raw string
}

// MatchDecision is the structured output of the hybrid matcher's phase-2
// LLM refinement step.
type MatchDecision struct {
	SkillID           string         `json:"skill_id,omitempty"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	SkillIntention    string         `json:"skill_intention,omitempty"`
	FrustrationLevel  float64        `json:"frustration_level,omitempty"`
	FrustrationReason string         `json:"frustration_reason,omitempty"`

	// ErrorMsg is set instead of SkillID when no skill can be resolved
	// (empty candidate set, or a required parameter with no inferable
	// value).
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Resolved reports whether the decision names a usable skill.
func (d MatchDecision) Resolved() bool {
	return d.SkillID != "" && d.ErrorMsg == ""
}

// DispatchRecord tracks one directive's full lifecycle through the
// dispatcher: match, skill invocation, and interpretation.
type DispatchRecord struct {
	ID        string
	TurnID    string
	Directive Directive
	Decision  *MatchDecision
	StartedAt time.Time
	Cancel    func()
}

// NewDispatchID generates an identifier for a new dispatch record.
func NewDispatchID() string {
	return uuid.New().String()
}

// NewTurnID generates an identifier for a new chat turn.
func NewTurnID() string {
	return uuid.New().String()
}

// Outer envelope "type" values.
const (
	EnvelopeMessage = "message"
	EnvelopeSignal  = "signal"
)

// Inner "event" values.
const (
	EventStream    = "stream"
	EventLoading   = "loading"
	EventCommand   = "command"
	EventCompleted = "completed"
	EventError     = "error"
	EventAbort     = "abort"
)

// Event is the single envelope shape written, one per line, on the
// `/framework/chat` ndjson stream: {type, event, content}.
type Event struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Content any    `json:"content,omitempty"`

	// Sequence is the turn-scoped monotonic order, assigned by the
	// multiplexer at enqueue time. Not part of the wire envelope.
	Sequence int `json:"-"`
}

// StreamFlags annotates a `stream` event's content per §6 of the protocol.
type StreamFlags struct {
	Skill    bool    `json:"skill,omitempty"`
	Audio    bool    `json:"audio,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// StreamContent is the content payload of a `message`/`stream` event.
type StreamContent struct {
	Content   string       `json:"content"`
	Flags     StreamFlags  `json:"flags"`
	Audio     *AudioRef    `json:"audio,omitempty"`
	MessageID string       `json:"messageId,omitempty"`
}

// AudioRef points at a TTS-rendered audio segment. Audio synthesis itself is
// out of scope; this struct exists so a client supplying `use_tts` still
// gets a well-formed, empty-by-default field to ignore.
type AudioRef struct {
	URL string `json:"url"`
}

// NewStreamEvent builds a `message`/`stream` event envelope.
func NewStreamEvent(content string, flags StreamFlags) Event {
	return Event{
		Type:  EnvelopeMessage,
		Event: EventStream,
		Content: map[string]any{
			"content": StreamContent{Content: content, Flags: flags},
		},
	}
}

// NewSignalEvent builds a `signal` event envelope.
func NewSignalEvent(event string, content any) Event {
	return Event{Type: EnvelopeSignal, Event: event, Content: content}
}

// ChatRequest is the payload accepted by POST /framework/chat.
type ChatRequest struct {
	Message        string         `json:"message"`
	UseTTS         bool           `json:"use_tts,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}
