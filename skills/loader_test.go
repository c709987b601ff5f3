package skills

import "testing"

func TestParse(t *testing.T) {
	t.Run("parses a valid skill descriptor", func(t *testing.T) {
		yaml := `
id: weather.lookup
name: Weather Lookup
description: Looks up current weather for a city.
route: /skills/weather
method: GET
parameters:
  type: object
  properties:
    city:
      type: string
      description: City name
    units:
      type: string
      enum: [metric, imperial]
  required:
    - city
`
		skill, err := Parse([]byte(yaml))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if skill.ID != "weather.lookup" {
			t.Errorf("expected ID 'weather.lookup', got: %s", skill.ID)
		}
		if skill.Route != "/skills/weather" {
			t.Errorf("expected route '/skills/weather', got: %s", skill.Route)
		}
		if skill.Method != "GET" {
			t.Errorf("expected method 'GET', got: %s", skill.Method)
		}
		if len(skill.Parameters.Properties) != 2 {
			t.Errorf("expected 2 properties, got: %d", len(skill.Parameters.Properties))
		}
		if len(skill.Parameters.Required) != 1 || skill.Parameters.Required[0] != "city" {
			t.Errorf("expected required=[city], got: %v", skill.Parameters.Required)
		}
		units := skill.Parameters.Properties["units"]
		if len(units.Enum) != 2 {
			t.Errorf("expected 2 enum values for units, got: %d", len(units.Enum))
		}
	})

	t.Run("returns error for missing ID", func(t *testing.T) {
		yaml := `
name: Nameless Skill
`
		_, err := Parse([]byte(yaml))
		if err == nil {
			t.Fatal("expected error for missing ID")
		}
	})
}
