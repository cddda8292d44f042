package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

// DefaultScheduledKeywords are title fragments that mark a YouTube broadcast
// as scheduled or a premiere rather than genuinely live
var DefaultScheduledKeywords = []string{
	"premiere",
	"scheduled",
	"starting soon",
	"live stream",
	"test",
	"live test",
	"going live",
	"🔴live",
	"🔴 live",
	"live.",
	"live!",
}

// Entry is one streamer in the roster file. It may be written either as a
// plain scalar (the name) or as a mapping with name and id.
type Entry struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// UnmarshalYAML accepts both "name" and {name: ..., id: ...} forms
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = strings.TrimSpace(value.Value)
		return nil
	}

	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Roster lists the streamers tracked on each platform
type Roster struct {
	Kick              []Entry  `yaml:"kick"`
	KickKnownBanned   []string `yaml:"kick_known_banned"`
	YouTube           []Entry  `yaml:"youtube"`
	Twitch            []Entry  `yaml:"twitch"`
	DLive             []Entry  `yaml:"dlive"`
	ScheduledKeywords []string `yaml:"scheduled_keywords"`
}

// DefaultRoster returns the built-in roster used when no roster file exists
func DefaultRoster() *Roster {
	return &Roster{
		Kick: names(
			"kangjoel", "burgerplanet", "cristravels", "bennymack",
			"captaingee", "jandro", "loulz", "asianandy", "crazytawn",
			"murda", "bongbong_irl", "ac7ionman", "suspendas",
			"wappyflanker", "xgewnx", "feef", "dbr666", "ABZ", "fousey",
			"muratstyle", "garydavid", "xenathewitch", "iceposeidon",
			"kimmee", "wvagabond", "zlatirl", "sam", "hyubsama",
			"jewelrancid", "attilabak", "chickenandy", "AdrianahLee",
			"pentiummania", "Mando", "Luplupka", "ShakoMako", "Moxie",
			"Slightlyhomeless", "Forrest22", "nanapips",
		),
		KickKnownBanned: []string{"onesonicirl"},
		YouTube: []Entry{
			{Name: "OGGEEZER", ID: "UC229CRwYN8oJ_2_rBN-7wwg"},
			{Name: "Carl I", ID: "UCk-CQ9KSZtlh-VcBwxZGBPQ"},
			{Name: "Goodtimes4Life", ID: "UCX7kqOjVtjZdOQ86u9nfWeQ"},
			{Name: "Pebbies", ID: "UCUNfKvI45t9zMsuLzbqigqA"},
			{Name: "KipOnTheGround", ID: "UCRjH9vXg5gGgEzQjXO99HXg"},
			{Name: "One Sonic", ID: "UCDDrY00FPYwLp9VqRhWiDgg"},
			{Name: "EBZ", ID: "UCUn24NHjc8asGiYet1P9h5Q"},
			{Name: "Hyphonix", ID: "UCaFpm67qMk1W1wJkFhGXucA"},
			{Name: "Jose Sanders Journeys", ID: "UCAp3jeyngZslUEx_D1djgHg"},
			{Name: "Saint10", ID: "UCOZ4ZOIAPlEFOgGIqj7jlMg"},
			{Name: "Scuffed Justin Carrey", ID: "UC4YYNTbzt3X1uxdTCJaYWdg"},
			{Name: "ShoeNice 22", ID: "UCyuCA6viLm6zsL6LNq67Tjg"},
			{Name: "Anarchy Princcess", ID: "UCbBoUd6b5MzLDaTXVjQ9A5g"},
			{Name: "Homeless Shelter RV", ID: "UCiQp2PKJeFFREfmH3HbjsEQ"},
			{Name: "Eugene", ID: "UCrmRz3rpk-wbIlMQdCMS2FQ"},
			{Name: "Mr Based Live", ID: "UCvGi96uLKTsJB1CI-8o2hqw"},
			{Name: "Forrest22", ID: "UCl3UvyhAU471GHXhdpFVbQA"},
		},
		Twitch: []Entry{
			{Name: "dr_pauper"},
			{Name: "grimoire"},
			{Name: "ac7ionman"},
			{Name: "fientude"},
			{Name: "shabbatai"},
			{Name: "taximarceldenhaag"},
			{Name: "moises"},
			{Name: "Amazoontje", ID: "amazoontje"},
			{Name: "Forrest22TV"},
		},
		DLive:             names("OfficialBjornTV"),
		ScheduledKeywords: append([]string(nil), DefaultScheduledKeywords...),
	}
}

func names(ns ...string) []Entry {
	out := make([]Entry, 0, len(ns))
	for _, n := range ns {
		out = append(out, Entry{Name: n})
	}
	return out
}

// LoadRoster reads the roster file at path. A missing file yields the
// built-in roster.
func LoadRoster(path string, log *logger.Logger) (*Roster, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("roster file not found, using built-in roster", map[string]interface{}{
			"path": path,
		})
		return DefaultRoster(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading roster file %s: %w", path, err)
	}

	return ParseRoster(data)
}

// ParseRoster decodes and validates roster YAML
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster file: %w", err)
	}

	if len(r.ScheduledKeywords) == 0 {
		r.ScheduledKeywords = append([]string(nil), DefaultScheduledKeywords...)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that every entry has a name
func (r *Roster) Validate() error {
	groups := map[domain.Platform][]Entry{
		domain.PlatformKick:    r.Kick,
		domain.PlatformYouTube: r.YouTube,
		domain.PlatformTwitch:  r.Twitch,
		domain.PlatformDLive:   r.DLive,
	}
	for platform, entries := range groups {
		for i, e := range entries {
			if strings.TrimSpace(e.Name) == "" {
				return fmt.Errorf("%w: %s roster entry %d has no name", domain.ErrInvalidInput, platform, i)
			}
		}
	}
	for i, n := range r.KickKnownBanned {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: kick_known_banned entry %d is empty", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

// Identities converts roster entries into domain identities
func Identities(entries []Entry) []domain.Identity {
	out := make([]domain.Identity, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Identity{Name: e.Name, ID: e.ID})
	}
	return out
}
