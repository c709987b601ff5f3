package orakle

import "testing"

type fakeSink struct {
	narrative   []string
	directives  []Directive
	incomplete  []string
}

func (f *fakeSink) Narrative(text string)          { f.narrative = append(f.narrative, text) }
func (f *fakeSink) Directive(d Directive)           { f.directives = append(f.directives, d) }
func (f *fakeSink) IncompleteDirective(body string) { f.incomplete = append(f.incomplete, body) }

func TestStreamParserNarrativeOnly(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	p.Feed("hello ")
	p.Feed("world")
	p.Close()

	if len(sink.directives) != 0 {
		t.Fatalf("expected no directives, got %d", len(sink.directives))
	}
	got := ""
	for _, n := range sink.narrative {
		got += n
	}
	if got != "hello world" {
		t.Fatalf("expected narrative %q, got %q", "hello world", got)
	}
}

func TestStreamParserSingleDirective(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	p.Feed("before <<<ORAKLE what's the weather ORAKLE after")
	p.Close()

	if len(sink.directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(sink.directives))
	}
	if sink.directives[0].Raw != "what's the weather" {
		t.Fatalf("unexpected directive body: %q", sink.directives[0].Raw)
	}
	if sink.narrative[0] != "before " {
		t.Fatalf("unexpected leading narrative: %q", sink.narrative[0])
	}
}

func TestStreamParserMarkerSplitAcrossChunks(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	chunks := []string{"before <<<OR", "AKLE do something ORA", "KLE after"}
	for _, c := range chunks {
		p.Feed(c)
	}
	p.Close()

	if len(sink.directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(sink.directives))
	}
	if sink.directives[0].Raw != "do something" {
		t.Fatalf("unexpected directive body: %q", sink.directives[0].Raw)
	}
}

func TestStreamParserDoesNotCloseOnWordContainingMarker(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	p.Feed("<<<ORAKLE talk about ORAKLENESS and then ORAKLE done")
	p.Close()

	if len(sink.directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(sink.directives))
	}
	if sink.directives[0].Raw != "talk about ORAKLENESS and then" {
		t.Fatalf("unexpected directive body: %q", sink.directives[0].Raw)
	}
}

func TestStreamParserIncompleteDirectiveAtClose(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	p.Feed("before <<<ORAKLE unterminated")
	p.Close()

	if len(sink.directives) != 0 {
		t.Fatalf("expected no completed directives, got %d", len(sink.directives))
	}
	if len(sink.incomplete) != 1 || sink.incomplete[0] != "unterminated" {
		t.Fatalf("unexpected incomplete body: %v", sink.incomplete)
	}
}

func TestStreamParserMultipleDirectives(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	p.Feed("a <<<ORAKLE one ORAKLE b <<<ORAKLE two ORAKLE c")
	p.Close()

	if len(sink.directives) != 2 {
		t.Fatalf("expected 2 directives, got %d", len(sink.directives))
	}
	if sink.directives[0].Sequence != 0 || sink.directives[1].Sequence != 1 {
		t.Fatalf("expected sequential directive numbering, got %+v", sink.directives)
	}
	if sink.directives[0].Raw != "one" || sink.directives[1].Raw != "two" {
		t.Fatalf("unexpected directive bodies: %+v", sink.directives)
	}
}

func TestStreamParserBackToBackDirectivesNoSeparator(t *testing.T) {
	sink := &fakeSink{}
	p := NewStreamParser(sink)
	p.Feed("<<<ORAKLE get weather in Paris ORAKLE<<<ORAKLE convert 20 C to F ORAKLE")
	p.Close()

	if len(sink.directives) != 2 {
		t.Fatalf("expected 2 directives, got %d: %+v", len(sink.directives), sink.directives)
	}
	if sink.directives[0].Raw != "get weather in Paris" {
		t.Fatalf("unexpected first directive body: %q", sink.directives[0].Raw)
	}
	if sink.directives[1].Raw != "convert 20 C to F" {
		t.Fatalf("unexpected second directive body: %q", sink.directives[1].Raw)
	}
}
