package engine

import (
	"strings"

	"github.com/lumenmed/lumen/internal/model"
)

// Reconstruct rebuilds the final artifact body from a task's event sequence.
//
// If any section_start event exists, the body is the ordered concatenation of
// every result event's content plus the content of token events occurring
// outside all sections. log events never contribute. If no section_start
// exists anywhere (a flat single-pass pipeline), the body is the ordered
// concatenation of all token events.
//
// The function depends only on the event sequence, so applying it twice to
// the same log yields the same string.
func Reconstruct(events []model.Event) string {
	sectioned := false
	for _, ev := range events {
		if ev.Kind == model.KindSectionStart {
			sectioned = true
			break
		}
	}

	var b strings.Builder
	if !sectioned {
		for _, ev := range events {
			if ev.Kind == model.KindToken {
				b.WriteString(ev.Content)
			}
		}
		return b.String()
	}

	depth := 0
	for _, ev := range events {
		switch ev.Kind {
		case model.KindSectionStart:
			depth++
		case model.KindSectionEnd:
			if depth > 0 {
				depth--
			}
		case model.KindResult:
			b.WriteString(ev.Content)
		case model.KindToken:
			if depth == 0 {
				b.WriteString(ev.Content)
			}
		}
	}
	return b.String()
}
