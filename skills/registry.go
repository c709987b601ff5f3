// Package skills implements C1, the Skill Registry: it caches skill
// descriptors fetched from the skills host and exposes an
// embedding-indexed similarity search over them.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/orakle-run/orakle"
)

const collectionName = "skills"

// Registry caches the current Catalog and a chromem-go collection used for
// the matcher's phase-1 semantic pre-filter. The catalog is published
// atomically: reload() builds the next catalog and collection off to the
// side and swaps them in, so readers never observe a partially rebuilt
// catalog (per SPEC_FULL.md §3, "Ownership").
type Registry struct {
	capabilitiesURL string
	httpClient      *http.Client
	embed           EmbedFunc

	db      *chromem.DB
	current atomic.Pointer[generation]
}

type generation struct {
	catalog    *orakle.Catalog
	collection *chromem.Collection
}

// NewRegistry creates a registry that fetches descriptors from
// capabilitiesURL (the skills host's /capabilities endpoint). embed is used
// to vectorize each skill's Name+Description; pass LocalEmbed for a
// dependency-free fallback.
func NewRegistry(capabilitiesURL string, embed EmbedFunc) *Registry {
	if embed == nil {
		embed = LocalEmbed
	}
	return &Registry{
		capabilitiesURL: capabilitiesURL,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		embed:           embed,
		db:              chromem.NewDB(),
	}
}

// Catalog returns the currently published catalog. It is nil until the
// first successful Reload.
func (r *Registry) Catalog() *orakle.Catalog {
	g := r.current.Load()
	if g == nil {
		return nil
	}
	return g.catalog
}

// Reload fetches the current descriptor list from the skills host,
// computes embeddings, builds a fresh chromem-go collection, and publishes
// both atomically. Reloading with an unchanged source is idempotent: the
// same descriptors produce the same embeddings and the same catalog
// contents (modulo LoadedAt/Revision).
func (r *Registry) Reload(ctx context.Context) error {
	descriptors, err := r.fetchCapabilities(ctx)
	if err != nil {
		return fmt.Errorf("fetch capabilities: %w", err)
	}
	return r.reloadFrom(ctx, descriptors)
}

// ReloadFrom publishes a catalog built from an explicit descriptor list,
// bypassing the HTTP fetch. Used by tests and by callers that already have
// descriptors in hand (e.g. loaded from YAML for local development).
func (r *Registry) ReloadFrom(ctx context.Context, descriptors []orakle.Skill) error {
	return r.reloadFrom(ctx, descriptors)
}

func (r *Registry) reloadFrom(ctx context.Context, descriptors []orakle.Skill) error {
	name := fmt.Sprintf("%s-%d", collectionName, time.Now().UnixNano())
	collection, err := r.db.CreateCollection(name, nil, r.chromemEmbed())
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	for i := range descriptors {
		vec, err := r.embed(descriptors[i].Name + " " + descriptors[i].Description)
		if err != nil {
			return fmt.Errorf("embed skill %s: %w", descriptors[i].ID, err)
		}
		descriptors[i].Embedding = vec

		if err := collection.AddDocument(ctx, chromem.Document{
			ID:        descriptors[i].ID,
			Content:   descriptors[i].Description,
			Embedding: vec,
		}); err != nil {
			return fmt.Errorf("index skill %s: %w", descriptors[i].ID, err)
		}
	}

	prev := r.current.Load()
	revision := 1
	if prev != nil {
		revision = prev.catalog.Revision + 1
	}

	next := &generation{
		catalog: &orakle.Catalog{
			Skills:   descriptors,
			LoadedAt: time.Now(),
			Revision: revision,
		},
		collection: collection,
	}
	r.current.Store(next)

	if prev != nil {
		_ = r.db.DeleteCollection(prev.collection.Name)
	}
	return nil
}

func (r *Registry) chromemEmbed() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		return r.embed(text)
	}
}

// Candidate is one phase-1 search hit.
type Candidate struct {
	Skill      orakle.Skill
	Similarity float64
}

// Search returns up to topK skills whose description embedding has cosine
// similarity at or above similarityFloor to query, ordered by descending
// similarity. An empty catalog or zero matches above the floor yields no
// candidates (a nil or empty slice), not an error: the matcher treats that
// as "no suitable skill"
// without calling the LLM.
func (r *Registry) Search(ctx context.Context, query string, topK int, similarityFloor float64) ([]Candidate, error) {
	g := r.current.Load()
	if g == nil || len(g.catalog.Skills) == 0 {
		return nil, nil
	}

	n := topK
	if n > len(g.catalog.Skills) {
		n = len(g.catalog.Skills)
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := g.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]Candidate, 0, len(results))
	for _, res := range results {
		if float64(res.Similarity) < similarityFloor {
			continue
		}
		skill, ok := g.catalog.ByID(res.ID)
		if !ok {
			continue
		}
		out = append(out, Candidate{Skill: skill, Similarity: float64(res.Similarity)})
	}
	return out, nil
}

func (r *Registry) fetchCapabilities(ctx context.Context) ([]orakle.Skill, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.capabilitiesURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capabilities endpoint returned status %d", resp.StatusCode)
	}

	var descriptors []orakle.Skill
	if err := json.NewDecoder(resp.Body).Decode(&descriptors); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	return descriptors, nil
}
