package adapter

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"who-is-live/internal/config"
)

func TestIsGenuinelyLive(t *testing.T) {
	keywords := config.DefaultScheduledKeywords

	tests := []struct {
		name    string
		rawLive bool
		viewers int
		title   string
		want    bool
	}{
		{"genuine stream", true, 50, "Exploring Tokyo at night", true},
		{"raw flag false", false, 50, "Exploring Tokyo at night", false},
		{"single viewer", true, 1, "Exploring Tokyo at night", false},
		{"zero viewers", true, 0, "Exploring Tokyo at night", false},
		{"premiere keyword", true, 5, "Premiere tonight!", false},
		{"starting soon keyword", true, 500, "Stream STARTING SOON", false},
		{"test keyword", true, 500, "audio test", false},
		{"red dot live", true, 500, "🔴LIVE from the beach", false},
		{"starts with live", true, 500, "Live: city walk", false},
		{"ends with live", true, 500, "City walk LIVE", false},
		{"live inside a word", true, 500, "Delivery run in Osaka", true},
		{"live in the middle", true, 500, "We are live in Seoul", true},
		{"starts with livestream word", true, 500, "Livestreaming the marathon", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsGenuinelyLive(tt.rawLive, tt.viewers, tt.title, keywords)
			if got != tt.want {
				t.Errorf("IsGenuinelyLive(%v, %d, %q) = %v, want %v", tt.rawLive, tt.viewers, tt.title, got, tt.want)
			}
		})
	}
}

func TestIsGenuinelyLive_KeywordsAreInjectable(t *testing.T) {
	if !IsGenuinelyLive(true, 10, "Premiere tonight", nil) {
		t.Error("without keywords a premiere title should pass")
	}
	if IsGenuinelyLive(true, 10, "Road trip day 3", []string{"road trip"}) {
		t.Error("custom keyword should suppress live")
	}
}

// The heuristic never asserts live when the raw flag is false or viewers <= 1
func TestProperty_HeuristicRequiresFlagAndViewers(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("raw flag and viewers are necessary", prop.ForAll(
		func(raw bool, viewers int, title string) bool {
			got := IsGenuinelyLive(raw, viewers, title, config.DefaultScheduledKeywords)
			if !raw || viewers <= 1 {
				return !got
			}
			return true
		},
		gen.Bool(),
		gen.IntRange(-5, 100),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
