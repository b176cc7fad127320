package engine_test

import (
	"testing"

	"github.com/lumenmed/lumen/internal/engine"
	"github.com/lumenmed/lumen/internal/model"
)

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name   string
		events []model.Event
		want   string
	}{
		{
			name: "flat log concatenates all tokens",
			events: []model.Event{
				{Kind: model.KindToken, Content: "Hello"},
				{Kind: model.KindLog, Content: "thinking"},
				{Kind: model.KindToken, Content: ", world"},
				{Kind: model.KindDone},
			},
			want: "Hello, world",
		},
		{
			name: "sectioned log takes results and ignores in-section tokens",
			events: []model.Event{
				{Kind: model.KindSectionStart, Step: "features"},
				{Kind: model.KindToken, Content: "draft"},
				{Kind: model.KindResult, Content: "## Features\n"},
				{Kind: model.KindSectionEnd, Step: "features"},
				{Kind: model.KindSectionStart, Step: "report"},
				{Kind: model.KindResult, Content: "## Report\n"},
				{Kind: model.KindSectionEnd, Step: "report"},
				{Kind: model.KindDone},
			},
			want: "## Features\n## Report\n",
		},
		{
			name: "tokens outside all sections contribute",
			events: []model.Event{
				{Kind: model.KindSectionStart, Step: "a"},
				{Kind: model.KindResult, Content: "body"},
				{Kind: model.KindSectionEnd, Step: "a"},
				{Kind: model.KindToken, Content: " tail"},
			},
			want: "body tail",
		},
		{
			name: "log events never contribute",
			events: []model.Event{
				{Kind: model.KindSectionStart, Step: "a"},
				{Kind: model.KindLog, Content: "progress"},
				{Kind: model.KindResult, Content: "x"},
				{Kind: model.KindSectionEnd, Step: "a"},
			},
			want: "x",
		},
		{
			name: "recoverable error note leaves section empty",
			events: []model.Event{
				{Kind: model.KindSectionStart, Step: "search"},
				{Kind: model.KindError, Step: "search", Content: "registry unreachable"},
				{Kind: model.KindSectionEnd, Step: "search"},
				{Kind: model.KindDone},
			},
			want: "",
		},
		{
			name:   "empty log",
			events: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Reconstruct(tt.events)
			if got != tt.want {
				t.Errorf("Reconstruct = %q, want %q", got, tt.want)
			}
			// Applying the rule again to the same log must not change the result.
			if again := engine.Reconstruct(tt.events); again != got {
				t.Errorf("Reconstruct not deterministic: %q then %q", got, again)
			}
		})
	}
}
