// Package catalog loads achievement definitions from YAML. The default
// catalog is embedded in the binary and used by the seed command.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/campushub/gamification/internal/domain/gamification"
)

//go:embed achievements.yaml
var defaultCatalog []byte

// File is the on-disk catalog format.
type File struct {
	Achievements []Definition `yaml:"achievements"`
}

// Definition is one achievement in the catalog file.
type Definition struct {
	Code        string                       `yaml:"code,omitempty"`
	Name        string                       `yaml:"name"`
	Description string                       `yaml:"description"`
	Type        gamification.AchievementType `yaml:"type"`
	Tier        gamification.Tier            `yaml:"tier"`
	Points      int                          `yaml:"points"`
	Icon        string                       `yaml:"icon,omitempty"`
	Condition   ConditionSpec                `yaml:"condition"`
	// Inactive definitions are seeded but never evaluated.
	Inactive bool `yaml:"inactive,omitempty"`
}

// ConditionSpec accepts either legacy condition text ("posts 10") or a
// structured {kind, threshold} mapping.
type ConditionSpec struct {
	Text       string
	Structured *gamification.Condition
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ConditionSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		c.Text = node.Value
		return nil
	case yaml.MappingNode:
		var cond gamification.Condition
		if err := node.Decode(&cond); err != nil {
			return err
		}
		c.Structured = &cond
		return nil
	default:
		return fmt.Errorf("line %d: condition must be text or a {kind, threshold} mapping", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (c ConditionSpec) MarshalYAML() (interface{}, error) {
	if c.Structured != nil {
		return c.Structured, nil
	}
	return c.Text, nil
}

// Load parses a catalog and builds validated achievements. Codes default to
// the slug of the name and must be unique.
func Load(r io.Reader, now time.Time) ([]*gamification.Achievement, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := make([]*gamification.Achievement, 0, len(f.Achievements))
	seen := make(map[string]string, len(f.Achievements))

	for i, d := range f.Achievements {
		a, err := d.Build(now)
		if err != nil {
			return nil, fmt.Errorf("achievement #%d: %w", i+1, err)
		}
		if prev, dup := seen[a.Code]; dup {
			return nil, fmt.Errorf("achievement #%d: code %q already used by %q", i+1, a.Code, prev)
		}
		seen[a.Code] = a.Name
		out = append(out, a)
	}

	return out, nil
}

// Default returns the embedded catalog.
func Default(now time.Time) ([]*gamification.Achievement, error) {
	return Load(bytes.NewReader(defaultCatalog), now)
}

// Build turns the definition into an achievement.
func (d Definition) Build(now time.Time) (*gamification.Achievement, error) {
	code := d.Code
	if code == "" {
		code = slug.Make(d.Name)
	}

	params := gamification.NewAchievementParams{
		Code:                 code,
		Name:                 d.Name,
		Description:          d.Description,
		Type:                 d.Type,
		Tier:                 d.Tier,
		Points:               d.Points,
		Icon:                 d.Icon,
		ConditionDescription: d.Condition.Text,
		IsActive:             !d.Inactive,
		Now:                  now,
	}
	if d.Condition.Structured != nil {
		params.Condition = *d.Condition.Structured
	}

	return gamification.NewAchievement(params)
}

// Export writes achievements in the catalog format, using structured
// conditions.
func Export(w io.Writer, achievements []*gamification.Achievement) error {
	f := File{Achievements: make([]Definition, 0, len(achievements))}
	for _, a := range achievements {
		cond := a.EffectiveCondition()
		f.Achievements = append(f.Achievements, Definition{
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			Type:        a.Type,
			Tier:        a.Tier,
			Points:      a.Points,
			Icon:        a.Icon,
			Condition:   ConditionSpec{Structured: &cond},
			Inactive:    !a.IsActive,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}
