package skills

import (
	"context"
	"testing"

	"github.com/orakle-run/orakle"
)

func TestRegistryReloadFromAndSearch(t *testing.T) {
	reg := NewRegistry("", LocalEmbed)
	descriptors := []orakle.Skill{
		{ID: "weather.lookup", Name: "Weather Lookup", Description: "current weather conditions for a city"},
		{ID: "reminders.create", Name: "Create Reminder", Description: "set a reminder for a later time"},
	}
	if err := reg.ReloadFrom(context.Background(), descriptors); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog := reg.Catalog()
	if catalog == nil || len(catalog.Skills) != 2 {
		t.Fatalf("expected 2 skills in catalog, got %+v", catalog)
	}
	if catalog.Revision != 1 {
		t.Errorf("expected first revision to be 1, got %d", catalog.Revision)
	}

	results, err := reg.Search(context.Background(), "what is the weather today", 10, 0.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one search result")
	}
}

func TestRegistryReloadBumpsRevisionAndPublishesAtomically(t *testing.T) {
	reg := NewRegistry("", LocalEmbed)
	if err := reg.ReloadFrom(context.Background(), []orakle.Skill{{ID: "a", Name: "A", Description: "first"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.ReloadFrom(context.Background(), []orakle.Skill{{ID: "b", Name: "B", Description: "second"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog := reg.Catalog()
	if catalog.Revision != 2 {
		t.Errorf("expected revision 2 after second reload, got %d", catalog.Revision)
	}
	if _, ok := catalog.ByID("a"); ok {
		t.Error("expected the first generation's skill to be gone after reload")
	}
	if _, ok := catalog.ByID("b"); !ok {
		t.Error("expected the second generation's skill to be present")
	}
}

func TestCatalogByIDMissing(t *testing.T) {
	var c *orakle.Catalog
	if _, ok := c.ByID("anything"); ok {
		t.Fatal("expected ByID on a nil catalog to report not found")
	}
}
