package channel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AliasRule maps a set of raw upstream channel spellings onto one canonical
// channel name. Rules are loaded at startup from YAML files and cached in
// memory; no hot reload.
type AliasRule struct {
	Name      string   `yaml:"name"`
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// Resolver resolves raw channel names to canonical ones: structural
// normalization first (Canonical), then the operator-supplied alias table.
type Resolver struct {
	aliases map[string]string // canonicalized alias -> canonical channel
}

// NewResolver builds a resolver from loaded alias rules.
func NewResolver(rules []AliasRule) *Resolver {
	aliases := make(map[string]string)
	for _, rule := range rules {
		for _, a := range rule.Aliases {
			aliases[Canonical(a)] = Canonical(rule.Canonical)
		}
	}
	return &Resolver{aliases: aliases}
}

// Resolve returns the canonical channel name for a raw spelling.
// Returns "" when the name is empty after normalization.
func (r *Resolver) Resolve(raw string) string {
	c := Canonical(raw)
	if c == "" {
		return ""
	}
	if target, ok := r.aliases[c]; ok {
		return target
	}
	return c
}

// FileSystemAliasRepository loads channel alias rules from *.yaml files in a
// directory. Each file contains exactly one rule at the top level.
type FileSystemAliasRepository struct {
	dir   string
	rules map[string]AliasRule // keyed by Name
}

// NewFileSystemAliasRepository creates a new repository and eagerly loads all
// rules from dir. Returns an error if any rule file is malformed or invalid.
func NewFileSystemAliasRepository(dir string) (*FileSystemAliasRepository, error) {
	repo := &FileSystemAliasRepository{
		dir:   dir,
		rules: make(map[string]AliasRule),
	}
	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *FileSystemAliasRepository) load() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		return nil // no alias directory means zero aliases configured
	}
	if err != nil {
		return fmt.Errorf("channel alias dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("channel alias path %q is not a directory", r.dir)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading channel alias dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading alias file %s: %w", path, err)
		}

		var rule AliasRule
		if err := yaml.Unmarshal(data, &rule); err != nil {
			return fmt.Errorf("parsing alias file %s: %w", path, err)
		}
		if rule.Name == "" {
			continue // skip empty / comment-only files
		}

		if Canonical(rule.Canonical) == "" {
			return fmt.Errorf("alias rule %q: canonical must not be empty", rule.Name)
		}
		if IsVirtual(Canonical(rule.Canonical)) {
			return fmt.Errorf("alias rule %q: canonical %q collides with a virtual state", rule.Name, rule.Canonical)
		}
		if len(rule.Aliases) == 0 {
			return fmt.Errorf("alias rule %q: at least one alias is required", rule.Name)
		}

		if _, exists := r.rules[rule.Name]; exists {
			return fmt.Errorf("alias rule %q: duplicate rule name (check multiple YAML files)", rule.Name)
		}

		r.rules[rule.Name] = rule
	}

	// An alias spelling must resolve to exactly one canonical channel.
	seen := make(map[string]string)
	for _, rule := range r.rules {
		for _, a := range rule.Aliases {
			c := Canonical(a)
			if prev, ok := seen[c]; ok && prev != rule.Name {
				return fmt.Errorf("alias %q claimed by both rule %q and rule %q", a, prev, rule.Name)
			}
			seen[c] = rule.Name
		}
	}

	return nil
}

// GetRules returns all loaded rules as a slice.
func (r *FileSystemAliasRepository) GetRules() []AliasRule {
	rules := make([]AliasRule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	return rules
}
