package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// MatcherConfig is the identity-matching alias table: canonical name to the
// spellings and stage names that should resolve to it.
type MatcherConfig struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// builtinMatcherConfig returns the shipped alias table. A YAML overlay merges
// on top; overlay groups extend built-in ones for the same canonical name.
func builtinMatcherConfig() *MatcherConfig {
	return &MatcherConfig{
		Aliases: map[string][]string{
			"Jennifer Lopez":        {"JLo", "J.Lo", "J Lo"},
			"Dwayne Johnson":        {"The Rock", "Dwayne The Rock Johnson"},
			"Sean Combs":            {"Diddy", "P Diddy", "Puff Daddy"},
			"Snoop Dogg":            {"Snoop", "Calvin Broadus"},
			"Robert Downey Jr":      {"RDJ", "Robert Downey Junior"},
			"Scarlett Johansson":    {"ScarJo"},
			"Jennifer Lawrence":     {"JLaw"},
			"Leonardo DiCaprio":     {"Leo DiCaprio"},
			"Cristiano Ronaldo":     {"CR7"},
			"LeBron James":          {"King James"},
			"Taylor Swift":          {"TSwift"},
			"Beyonce":               {"Beyonce Knowles", "Queen B"},
			"The Weeknd":            {"Abel Tesfaye"},
			"Lady Gaga":             {"Stefani Germanotta"},
			"Elton John":            {"Sir Elton John"},
			"Arnold Schwarzenegger": {"Arnie"},
		},
	}
}

// LoadMatcherConfig resolves the alias table: built-in defaults, optionally
// merged with a YAML overlay at path. An empty path returns the defaults.
func LoadMatcherConfig(path string) (*MatcherConfig, error) {
	cfg := builtinMatcherConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matcher config: %w", err)
	}

	var overlay MatcherConfig
	if err := yaml.Unmarshal(expandEnvTemplate(raw), &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse matcher config: %w", err)
	}

	if err := mergo.Merge(cfg, &overlay, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, fmt.Errorf("failed to merge matcher config: %w", err)
	}
	dedupeAliases(cfg)
	return cfg, nil
}

// expandEnvTemplate expands {{.VAR_NAME}} references with environment
// variables. Template syntax avoids colliding with literal $ in names.
// Malformed templates pass the content through untouched.
func expandEnvTemplate(data []byte) []byte {
	tmpl, err := template.New("matcher").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}

// dedupeAliases removes duplicates introduced by slice-appending merges.
func dedupeAliases(cfg *MatcherConfig) {
	for canonical, group := range cfg.Aliases {
		seen := make(map[string]struct{}, len(group))
		out := group[:0]
		for _, alias := range group {
			key := strings.ToLower(strings.TrimSpace(alias))
			if _, dup := seen[key]; dup || key == "" {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, alias)
		}
		cfg.Aliases[canonical] = out
	}
}
