package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewStoreSeedsDefaults(t *testing.T) {
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := store.Snapshot()
	if cfg.Matcher.TopK != 10 {
		t.Errorf("expected default TopK 10, got %d", cfg.Matcher.TopK)
	}
	if cfg.Matcher.ConfidenceFloor != 0.75 {
		t.Errorf("expected default ConfidenceFloor 0.75, got %v", cfg.Matcher.ConfidenceFloor)
	}
	if len(cfg.Services) != 2 {
		t.Errorf("expected 2 default services, got %d", len(cfg.Services))
	}
}

func TestStorePutMergesPartialDocument(t *testing.T) {
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patch, _ := json.Marshal(map[string]any{
		"default_model": "gpt-4.1",
		"matcher":       map[string]any{"top_k": 5},
	})
	if err := store.Put(patch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := store.Snapshot()
	if cfg.DefaultModel != "gpt-4.1" {
		t.Errorf("expected default_model to be updated, got %q", cfg.DefaultModel)
	}
	if cfg.Matcher.TopK != 5 {
		t.Errorf("expected matcher.top_k to be updated, got %d", cfg.Matcher.TopK)
	}
	if cfg.Matcher.ConfidenceFloor != 0.75 {
		t.Errorf("expected unspecified matcher fields to be preserved, got %v", cfg.Matcher.ConfidenceFloor)
	}
}

func TestRenderRedactsSensitiveFieldsByDefault(t *testing.T) {
	cfg := Defaults()
	cfg.Providers = []LLMProviderConfig{{Name: "primary", Kind: "openai", APIKey: "sk-secret", Model: "gpt-4o-mini"}}

	redacted, err := Render(cfg, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(redacted), "sk-secret") {
		t.Fatalf("expected api_key to be redacted, got: %s", redacted)
	}

	shown, err := Render(cfg, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(shown), "sk-secret") {
		t.Fatalf("expected api_key to be shown with show_sensitive, got: %s", shown)
	}
}
