// Package prompt loads the relay's system prompt and sampling settings.
package prompt

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSystem = "You are a helpful AI assistant. You respond in a conversational and engaging way. Keep your responses concise but informative."
	DefaultModel  = "grok-beta"

	DefaultTemperature   float32 = 0.7
	DefaultMaxTokens             = 1000
	DefaultHistoryWindow         = 5
)

// Profile is the YAML shape of prompts/relay.yaml.
type Profile struct {
	System string `yaml:"system"`
	Model  string `yaml:"model"`
	Style  struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
	HistoryWindow int `yaml:"history_window"`
}

func Default() Profile {
	var p Profile
	p.applyDefaults()
	return p
}

// Load reads a profile from path. A missing file yields Default.
func Load(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Profile{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, err
	}
	p.applyDefaults()
	return p, nil
}

func (p *Profile) applyDefaults() {
	p.System = strings.TrimSpace(p.System)
	if p.System == "" {
		p.System = DefaultSystem
	}
	p.Model = strings.TrimSpace(p.Model)
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.Style.Temperature <= 0 || p.Style.Temperature > 2 {
		p.Style.Temperature = DefaultTemperature
	}
	if p.Style.MaxTokens <= 0 {
		p.Style.MaxTokens = DefaultMaxTokens
	}
	// the relay never forwards more than the last five exchanges
	if p.HistoryWindow <= 0 || p.HistoryWindow > DefaultHistoryWindow {
		p.HistoryWindow = DefaultHistoryWindow
	}
}
