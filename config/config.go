// Package config holds Orakle's process-wide configuration: a single
// writer, many readers, each reader observing a consistent snapshot taken
// at call start.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"
)

// LLMProviderConfig holds credentials and routing for one configured LLM
// provider.
type LLMProviderConfig struct {
	Name    string `yaml:"name" json:"name"`
	Kind    string `yaml:"kind" json:"kind"` // "openai" or "anthropic"
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model   string `yaml:"model" json:"model"`
}

// MatcherConfig tunes the hybrid matcher's two phases.
type MatcherConfig struct {
	TopK            int     `yaml:"top_k" json:"top_k"`
	SimilarityFloor float64 `yaml:"similarity_floor" json:"similarity_floor"`
	ConfidenceFloor float64 `yaml:"confidence_floor" json:"confidence_floor"`
}

// ServiceConfig describes one supervised subprocess.
type ServiceConfig struct {
	Name       string        `yaml:"name" json:"name"`
	Binary     string        `yaml:"binary" json:"binary"`
	Args       []string      `yaml:"args,omitempty" json:"args,omitempty"`
	Port       int           `yaml:"port" json:"port"`
	HealthPath string        `yaml:"health_path" json:"health_path"`
	StartupMax time.Duration `yaml:"startup_timeout" json:"startup_timeout"`
}

// Timeouts collects the per-operation timeout budget described in §5.
type Timeouts struct {
	SkillCall        time.Duration `yaml:"skill_call" json:"skill_call"`
	LLMCall          time.Duration `yaml:"llm_call" json:"llm_call"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown" json:"graceful_shutdown"`
}

// RateLimitConfig bounds the façade's per-IP request budget. Zero RPS
// disables the limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

// Config is the full Orakle backend configuration.
type Config struct {
	Providers      []LLMProviderConfig `yaml:"providers" json:"providers"`
	DefaultModel   string              `yaml:"default_model" json:"default_model"`
	Matcher        MatcherConfig       `yaml:"matcher" json:"matcher"`
	Services       []ServiceConfig     `yaml:"services" json:"services"`
	Timeouts       Timeouts            `yaml:"timeouts" json:"timeouts"`
	AllowedOrigins []string            `yaml:"allowed_origins" json:"allowed_origins"`
	DataDir        string              `yaml:"data_dir" json:"data_dir"`
	RateLimit      RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
}

// sensitivePaths lists gjson-style paths redacted from GET responses unless
// ?show_sensitive=true is given.
var sensitivePaths = []string{"providers.#.api_key"}

// Defaults returns the configuration used by the setup flow, i.e. the
// GET /config/defaults response.
func Defaults() Config {
	return Config{
		DefaultModel: "gpt-4o-mini",
		Matcher: MatcherConfig{
			TopK:            10,
			SimilarityFloor: 0.35,
			ConfidenceFloor: 0.75,
		},
		Services: []ServiceConfig{
			{Name: "skills-host", Port: 8901, HealthPath: "/health", StartupMax: 600 * time.Second},
			{Name: "python-bridge", Port: 8902, HealthPath: "/health", StartupMax: 600 * time.Second},
		},
		Timeouts: Timeouts{
			SkillCall:        30 * time.Second,
			LLMCall:          60 * time.Second,
			GracefulShutdown: 20 * time.Second,
		},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 20},
	}
}

// Store is a process-wide configuration holder with one exclusive writer
// (Put) and many concurrent readers (Snapshot), backed by an
// atomic.Pointer so readers never observe a torn write.
type Store struct {
	path string
	mu   sync.Mutex // serializes writers
	cur  atomic.Pointer[Config]
}

// NewStore creates a Store seeded with Defaults(), optionally overridden by
// a YAML file at path if it exists.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	cfg := Defaults()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	s.cur.Store(&cfg)
	return s, nil
}

// Snapshot returns the current configuration. The returned value is safe to
// read without further synchronization; it is never mutated in place.
func (s *Store) Snapshot() Config {
	return *s.cur.Load()
}

// Put applies a partial or full JSON document onto the current snapshot and
// publishes the result atomically. The merge is performed by overlaying the
// partial document's top-level and nested keys onto the current snapshot's
// JSON representation with sjson, so an unspecified field retains its
// previous value.
func (s *Store) Put(partial []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base, err := json.Marshal(s.Snapshot())
	if err != nil {
		return err
	}

	merged, err := mergeJSON(base, partial)
	if err != nil {
		return err
	}

	var next Config
	if err := json.Unmarshal(merged, &next); err != nil {
		return err
	}

	s.cur.Store(&next)
	if s.path != "" {
		data, err := yaml.Marshal(next)
		if err != nil {
			return err
		}
		return os.WriteFile(s.path, data, 0o600)
	}
	return nil
}

// Render marshals the snapshot to JSON, redacting sensitivePaths unless
// showSensitive is true.
func Render(cfg Config, showSensitive bool) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if showSensitive {
		return data, nil
	}
	for _, path := range sensitivePaths {
		result := gjson.GetBytes(data, path)
		if !result.Exists() {
			continue
		}
		if result.IsArray() {
			for i := range result.Array() {
				p := redactArrayPath(path, i)
				data, err = sjson.SetBytes(data, p, "")
				if err != nil {
					return nil, err
				}
			}
			continue
		}
		data, err = sjson.SetBytes(data, path, "")
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// mergeJSON overlays every leaf value of patch onto base at the same path,
// preserving everything in base that patch does not mention.
func mergeJSON(base, patch []byte) ([]byte, error) {
	result := base
	var err error
	var walk func(prefix string, obj gjson.Result)
	walk = func(prefix string, obj gjson.Result) {
		obj.ForEach(func(key, value gjson.Result) bool {
			path := prefix + key.String()
			if value.IsObject() && gjson.GetBytes(result, path).IsObject() {
				walk(path+".", value)
				return err == nil
			}
			result, err = sjson.SetBytesOptions(result, path, value.Value(), &sjson.Options{Optimistic: true, ReplaceInPlace: true})
			return err == nil
		})
	}
	walk("", gjson.ParseBytes(patch))
	return result, err
}

func redactArrayPath(path string, idx int) string {
	// turns "providers.#.api_key" into "providers.<idx>.api_key"
	out := ""
	for i := 0; i < len(path); i++ {
		if path[i] == '#' {
			out += strconv.Itoa(idx)
			continue
		}
		out += string(path[i])
	}
	return out
}
