package lang

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CommandKeys are the command definitions every language pack must provide.
var CommandKeys = []string{
	"help", "info", "booyah", "chuck", "cytube", "announce", "admin", "prefix", "channel",
}

// StringKeys are the response and log formats every language pack must provide.
var StringKeys = []string{
	"boot", "ready", "join", "oauth",
	"help", "info", "booyah", "chuck_err",
	"room_info", "room_info_url", "announce", "announce_url",
	"watch_on", "watch_off", "watch_lost",
	"admin_on", "admin_off", "owner_demote",
	"prefix_set", "channel_set",
	"unknown_channel", "invalid_mention", "denied",
	"unknown_command", "usage", "timeout", "connect_err",
}

// Command is one localized command definition.
type Command struct {
	Name  string `yaml:"name"`
	Desc  string `yaml:"desc"`
	Usage string `yaml:"usage"`
}

// Pack holds all localized text for one language code.
type Pack struct {
	Code     string             `yaml:"-"`
	Commands map[string]Command `yaml:"commands"`
	Strings  map[string]string  `yaml:"strings"`
}

// Command returns the localized definition for a command key.
func (p *Pack) Command(key string) Command {
	return p.Commands[key]
}

// Format renders the string for key with fmt.Sprintf semantics.
func (p *Pack) Format(key string, args ...any) string {
	f, ok := p.Strings[key]
	if !ok {
		return key
	}
	return fmt.Sprintf(f, args...)
}

// Set is the immutable collection of language packs loaded at startup.
type Set struct {
	packs       map[string]*Pack
	defaultCode string
}

// Load reads every .yaml/.yml file in dir as a language pack named by its
// file name, validates all packs, and requires defaultCode to be present.
func Load(dir, defaultCode string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read language directory %s: %w", dir, err)
	}

	packs := make(map[string]*Pack)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		code := strings.TrimSuffix(entry.Name(), ext)

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read language pack %s: %w", entry.Name(), err)
		}
		var pack Pack
		if err := yaml.Unmarshal(data, &pack); err != nil {
			return nil, fmt.Errorf("failed to parse language pack %s: %w", entry.Name(), err)
		}
		pack.Code = code
		if err := validate(&pack); err != nil {
			return nil, fmt.Errorf("language pack %s: %w", code, err)
		}
		packs[code] = &pack
	}

	if len(packs) == 0 {
		return nil, fmt.Errorf("no language packs found in %s", dir)
	}
	if _, ok := packs[defaultCode]; !ok {
		return nil, fmt.Errorf("default language %s missing from %s", defaultCode, dir)
	}
	return &Set{packs: packs, defaultCode: defaultCode}, nil
}

// NewSet builds a set from already-constructed packs. Intended for tests.
func NewSet(defaultCode string, packs ...*Pack) (*Set, error) {
	m := make(map[string]*Pack, len(packs))
	for _, p := range packs {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("language pack %s: %w", p.Code, err)
		}
		m[p.Code] = p
	}
	if _, ok := m[defaultCode]; !ok {
		return nil, fmt.Errorf("default language %s missing", defaultCode)
	}
	return &Set{packs: m, defaultCode: defaultCode}, nil
}

// validate checks that a pack defines every command and string key.
func validate(p *Pack) error {
	for _, key := range CommandKeys {
		cmd, ok := p.Commands[key]
		if !ok || cmd.Name == "" {
			return fmt.Errorf("missing command definition %q", key)
		}
		if strings.ContainsAny(cmd.Name, " \t") {
			return fmt.Errorf("command name %q may not contain whitespace", cmd.Name)
		}
	}
	for _, key := range StringKeys {
		if _, ok := p.Strings[key]; !ok {
			return fmt.Errorf("missing string %q", key)
		}
	}
	return nil
}

// DefaultCode returns the configured default language code.
func (s *Set) DefaultCode() string {
	return s.defaultCode
}

// Default returns the default language pack.
func (s *Set) Default() *Pack {
	return s.packs[s.defaultCode]
}

// Pack returns the pack for code, falling back to the default pack when the
// code is unknown.
func (s *Set) Pack(code string) *Pack {
	if p, ok := s.packs[code]; ok {
		return p
	}
	return s.packs[s.defaultCode]
}

// Resolve returns code when it names a loaded pack, else the default code.
func (s *Set) Resolve(code string) string {
	if _, ok := s.packs[code]; ok {
		return code
	}
	return s.defaultCode
}

// Codes lists all loaded language codes.
func (s *Set) Codes() []string {
	codes := make([]string, 0, len(s.packs))
	for code := range s.packs {
		codes = append(codes, code)
	}
	return codes
}
