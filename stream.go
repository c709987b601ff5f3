package orakle

import (
	"strings"
	"unicode"
)

const (
	openMarker  = "<<<ORAKLE"
	closeMarker = "ORAKLE"
)

type parserState int

const (
	stateOutside parserState = iota
	stateInside
)

// StreamSink receives the output of the stream parser: narrative chunks as
// they are flushed, and completed (or failed) directives.
type StreamSink interface {
	Narrative(text string)
	Directive(d Directive)
	IncompleteDirective(body string)
}

// StreamParser implements C3: it consumes raw LLM token chunks and splits
// them into narrative text and `<<<ORAKLE ... ORAKLE` invocation
// directives, tolerating markers split across chunk boundaries.
type StreamParser struct {
	sink StreamSink

	state parserState
	buf   strings.Builder // pending bytes not yet classified
	body  strings.Builder // accumulated directive body while stateInside
	seq   int
}

// NewStreamParser creates a parser that reports to sink.
func NewStreamParser(sink StreamSink) *StreamParser {
	return &StreamParser{sink: sink}
}

// Feed processes one chunk of raw LLM output. It may be called repeatedly
// with arbitrarily small chunks, including a single byte at a time.
func (p *StreamParser) Feed(chunk string) {
	p.buf.WriteString(chunk)
	p.drain(false)
}

// Close signals upstream EOF. Per the TERMINATED transition: any buffered
// narrative is flushed; an in-progress directive is reported incomplete and
// discarded.
func (p *StreamParser) Close() {
	p.drain(true)
	if p.state == stateInside {
		p.sink.IncompleteDirective(strings.TrimSpace(p.body.String()))
		p.body.Reset()
		p.state = stateOutside
		return
	}
	if p.buf.Len() > 0 {
		p.sink.Narrative(p.buf.String())
		p.buf.Reset()
	}
}

// drain consumes as much of p.buf as can be unambiguously classified. When
// final is false, a trailing partial (or boundary-ambiguous) match is left
// in the buffer in case the next Feed resolves it.
func (p *StreamParser) drain(final bool) {
	for {
		switch p.state {
		case stateOutside:
			s := p.buf.String()
			idx := strings.Index(s, openMarker)
			if idx < 0 {
				safe := safeSuffixHold(s, openMarker, final)
				p.flushNarrative(s, safe)
				return
			}
			if idx > 0 {
				p.sink.Narrative(s[:idx])
			}
			p.resetBufTo(s[idx+len(openMarker):])
			p.state = stateInside

		case stateInside:
			s := p.buf.String()
			if pos, ok := findClosingMarker(s, final); ok {
				p.body.WriteString(s[:pos])
				d := Directive{Sequence: p.seq, Raw: strings.TrimSpace(p.body.String())}
				p.seq++
				p.body.Reset()
				p.resetBufTo(s[pos+len(closeMarker):])
				p.state = stateOutside
				p.sink.Directive(d)
				continue
			}
			safe := safeSuffixHold(s, closeMarker, final)
			if safe > 0 {
				p.body.WriteString(s[:safe])
			}
			p.resetBufTo(s[safe:])
			return
		}
	}
}

func (p *StreamParser) flushNarrative(s string, safe int) {
	if safe > 0 {
		p.sink.Narrative(s[:safe])
	}
	p.resetBufTo(s[safe:])
}

func (p *StreamParser) resetBufTo(rest string) {
	p.buf.Reset()
	p.buf.WriteString(rest)
}

// safeSuffixHold returns how many leading bytes of s can be safely
// committed without risking splitting a (possibly boundary-qualified)
// occurrence of marker across this chunk and the next. It holds back any
// suffix of s that is a prefix of marker, including the full marker itself
// (since a marker at the very end of the buffer cannot yet have its
// trailing boundary character confirmed). If final is true, nothing more
// is coming, so the whole string is safe.
func safeSuffixHold(s, marker string, final bool) int {
	if final {
		return len(s)
	}
	maxOverlap := len(marker)
	if maxOverlap > len(s) {
		maxOverlap = len(s)
	}
	for k := maxOverlap; k > 0; k-- {
		if strings.HasSuffix(s, marker[:k]) {
			return len(s) - k
		}
	}
	return len(s)
}

// findClosingMarker finds the earliest standalone occurrence of closeMarker
// in s: preceded by a marker boundary or start-of-string, followed by a
// marker boundary or end-of-string. A marker sitting exactly at the end of s
// is ambiguous (its following character is unknown) and is reported as not
// found unless final is true. This keeps a directive body containing
// "ORAKLE" as part of a larger word (e.g. "ORAKLENESS") from prematurely
// closing the directive, while still recognizing two directives placed back
// to back with no separating whitespace, e.g. "...ORAKLE<<<ORAKLE...".
func findClosingMarker(s string, final bool) (int, bool) {
	from := 0
	for {
		idx := strings.Index(s[from:], closeMarker)
		if idx < 0 {
			return 0, false
		}
		pos := from + idx
		if pos > 0 && !isMarkerBoundary(rune(s[pos-1])) {
			from = pos + 1
			continue
		}
		end := pos + len(closeMarker)
		if end < len(s) {
			if !isMarkerBoundary(rune(s[end])) {
				from = pos + 1
				continue
			}
			return pos, true
		}
		if final {
			return pos, true
		}
		return 0, false
	}
}

// isMarkerBoundary reports whether r can sit immediately next to a marker
// without joining it into a larger word. Anything that isn't a letter or
// digit counts: whitespace, punctuation, and symbols like "<" (so a closing
// "ORAKLE" immediately followed by the next directive's "<<<ORAKLE" is
// still recognized as standalone).
func isMarkerBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
