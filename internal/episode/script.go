package episode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SectionType categorizes a script section.
type SectionType string

const (
	SectionIntro      SectionType = "intro"
	SectionMain       SectionType = "main_content"
	SectionTransition SectionType = "transition"
	SectionOutro      SectionType = "outro"
)

// Script is the structured output of script generation, stored as JSON on the
// episode row and consumed by the audio and video stages.
type Script struct {
	Title                string          `json:"title"`
	TotalDurationSeconds float64         `json:"total_duration_seconds"`
	Sections             []ScriptSection `json:"sections"`
}

// ScriptSection is one narrated segment of a script.
type ScriptSection struct {
	ID              string            `json:"id"`
	Type            SectionType       `json:"type"`
	Content         string            `json:"content"`
	DurationSeconds float64           `json:"duration_seconds"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Validate checks structural invariants the downstream stages rely on.
func (s *Script) Validate() error {
	if s == nil {
		return fmt.Errorf("script is nil")
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("script title is empty")
	}
	if len(s.Sections) == 0 {
		return fmt.Errorf("script has no sections")
	}
	seen := make(map[string]struct{}, len(s.Sections))
	for i, section := range s.Sections {
		if strings.TrimSpace(section.ID) == "" {
			return fmt.Errorf("section %d has no id", i)
		}
		if _, dup := seen[section.ID]; dup {
			return fmt.Errorf("duplicate section id %q", section.ID)
		}
		seen[section.ID] = struct{}{}
		if strings.TrimSpace(section.Content) == "" {
			return fmt.Errorf("section %q has no content", section.ID)
		}
		if section.DurationSeconds <= 0 {
			return fmt.Errorf("section %q has non-positive duration", section.ID)
		}
	}
	return nil
}

// ParseScript decodes and validates a stored script JSON document.
func ParseScript(raw string) (*Script, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("script payload is empty")
	}
	var script Script
	if err := json.Unmarshal([]byte(raw), &script); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Encode serializes the script for storage on the episode row.
func (s *Script) Encode() (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode script: %w", err)
	}
	return string(payload), nil
}

// NarrationText joins section contents in order for speech synthesis.
func (s *Script) NarrationText() string {
	parts := make([]string, 0, len(s.Sections))
	for _, section := range s.Sections {
		if text := strings.TrimSpace(section.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
