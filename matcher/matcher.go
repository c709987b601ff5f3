// Package matcher implements C2, the Hybrid Matcher: a semantic pre-filter
// over the skill catalog followed by an LLM-guided final selection and
// parameter-extraction step.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orakle-run/orakle"
	"github.com/orakle-run/orakle/llm"
	"github.com/orakle-run/orakle/skills"
)

// Config tunes the matcher's two phases. Defaults come from
// config.Defaults().Matcher.
type Config struct {
	TopK            int
	SimilarityFloor float64
	ConfidenceFloor float64
}

// Matcher resolves a directive's free-text body to exactly one skill and a
// parameter object, or to an explicit "no suitable skill" decision.
type Matcher struct {
	registry *skills.Registry
	provider llm.Provider
	model    string
	cfg      Config
}

// New creates a Matcher backed by registry for phase 1 and provider for
// phase 2.
func New(registry *skills.Registry, provider llm.Provider, model string, cfg Config) *Matcher {
	return &Matcher{registry: registry, provider: provider, model: model, cfg: cfg}
}

// Match runs both phases for directive text and returns the resulting
// decision. It never returns an error for "no suitable skill" — that is
// expressed as a decision with ErrorMsg set, per the data model's
// fallback contract.
func (m *Matcher) Match(ctx context.Context, text string) (orakle.MatchDecision, error) {
	candidates, err := m.registry.Search(ctx, text, m.cfg.TopK, m.cfg.SimilarityFloor)
	if err != nil {
		return orakle.MatchDecision{}, fmt.Errorf("phase 1 search: %w", err)
	}
	if len(candidates) == 0 {
		return orakle.MatchDecision{ErrorMsg: "no suitable skill found for this request"}, nil
	}

	// Optimization (not required for correctness, SPEC_FULL.md §4.2): a
	// single dominant candidate well above the confidence floor skips the
	// LLM round trip entirely. Only safe for skills that take no required
	// parameters — phase 1 alone cannot extract them, so a skill with
	// required parameters always falls through to phase 2.
	if len(candidates) == 1 && candidates[0].Similarity >= m.cfg.ConfidenceFloor && len(candidates[0].Skill.Parameters.Required) == 0 {
		return m.decisionFromCandidateOnly(candidates[0]), nil
	}

	decision, err := m.refine(ctx, text, candidates)
	if err != nil {
		return orakle.MatchDecision{}, err
	}
	return m.validate(decision, candidates)
}

// decisionFromCandidateOnly builds a decision without parameters, used only
// for the high-confidence skip-phase-2 path, which Match only takes for
// skills with no required parameters.
func (m *Matcher) decisionFromCandidateOnly(c skills.Candidate) orakle.MatchDecision {
	return orakle.MatchDecision{
		SkillID:        c.Skill.ID,
		Parameters:     map[string]any{},
		SkillIntention: fmt.Sprintf("Let me use %s for that.", c.Skill.Name),
	}
}

func (m *Matcher) refine(ctx context.Context, text string, candidates []skills.Candidate) (orakle.MatchDecision, error) {
	prompt := buildPrompt(text, candidates)
	decision, err := m.call(ctx, prompt)
	if err == nil {
		return decision, nil
	}

	// One retry with a tightened reminder, per SPEC_FULL.md §4.2.
	retryPrompt := prompt + "\n\nYour previous response was not valid JSON matching the required shape. Respond with ONLY the JSON object, nothing else."
	decision, err2 := m.call(ctx, retryPrompt)
	if err2 != nil {
		return orakle.MatchDecision{}, fmt.Errorf("%w: %v", orakle.ErrSkillResolutionFailed, err2)
	}
	return decision, nil
}

func (m *Matcher) call(ctx context.Context, prompt string) (orakle.MatchDecision, error) {
	raw, err := m.provider.Complete(ctx, llm.Request{
		Model: m.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		ResponseFormat: &llm.ResponseFormat{Kind: "json_object"},
		Temperature:    0,
	})
	if err != nil {
		return orakle.MatchDecision{}, err
	}

	var decision orakle.MatchDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &decision); err != nil {
		return orakle.MatchDecision{}, fmt.Errorf("malformed match decision: %w", err)
	}
	return decision, nil
}

// validate enforces the data model's invariants: skill_id must be one of
// the candidates passed to phase 2, and every parameter key must be
// declared in that skill's schema.
func (m *Matcher) validate(decision orakle.MatchDecision, candidates []skills.Candidate) (orakle.MatchDecision, error) {
	if !decision.Resolved() {
		if decision.ErrorMsg == "" {
			decision.ErrorMsg = "no suitable skill found for this request"
		}
		return decision, nil
	}

	var chosen *orakle.Skill
	for i := range candidates {
		if candidates[i].Skill.ID == decision.SkillID {
			chosen = &candidates[i].Skill
			break
		}
	}
	if chosen == nil {
		return orakle.MatchDecision{ErrorMsg: "selected skill was not among the candidates"}, nil
	}

	for key := range decision.Parameters {
		if _, ok := chosen.Parameters.Properties[key]; !ok {
			delete(decision.Parameters, key)
		}
	}
	for _, required := range chosen.Parameters.Required {
		if _, ok := decision.Parameters[required]; !ok {
			return orakle.MatchDecision{
				ErrorMsg: fmt.Sprintf("missing required parameter %q for skill %q", required, chosen.ID),
			}, nil
		}
	}

	return decision, nil
}

const systemPrompt = `You resolve a user's request to exactly one skill from a candidate list and extract its parameters.

Rules:
1. Choose the single best matching skill_id from the candidates given, or none.
2. Extract parameters strictly from the candidate's declared schema; never invent keys.
3. Required parameters without an inferable value disqualify that skill: pick another, or return error_msg.
4. Return a single well-formed JSON object, no surrounding prose.

Response shape: {"skill_id": string, "parameters": object, "skill_intention": string, "frustration_level": number, "frustration_reason": string|null} or {"error_msg": string} if nothing fits.`

func buildPrompt(text string, candidates []skills.Candidate) string {
	var b strings.Builder
	b.WriteString("User request:\n")
	b.WriteString(text)
	b.WriteString("\n\nCandidate skills:\n")
	for _, c := range candidates {
		schema, _ := json.Marshal(c.Skill.Parameters)
		fmt.Fprintf(&b, "- id=%s name=%q similarity=%.3f schema=%s\n", c.Skill.ID, c.Skill.Name, c.Similarity, schema)
	}
	return b.String()
}
