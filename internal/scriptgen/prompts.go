package scriptgen

import (
	"fmt"
	"strings"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
)

const stageName = "generating_script"

const scriptFormatInstructions = `You write video episode scripts. Respond with JSON only, matching this shape:
{
  "title": "episode title",
  "total_duration_seconds": 900,
  "sections": [
    {"id": "s1", "type": "intro", "content": "spoken narration", "duration_seconds": 30},
    {"id": "s2", "type": "main_content", "content": "spoken narration", "duration_seconds": 120},
    {"id": "s3", "type": "outro", "content": "spoken narration", "duration_seconds": 30}
  ]
}
Section types are intro, main_content, transition, and outro. Every section id must be unique. Content is the literal narration a voice will read aloud.`

var stylePrompts = map[episode.ContentStyle]string{
	episode.StyleEducational:   "Write a clear, structured educational script. Explain concepts step by step, define jargon on first use, and close with a short recap.",
	episode.StyleNews:          "Write a concise news-style script. Lead with the most important development, attribute claims, and keep a neutral tone.",
	episode.StyleEntertainment: "Write an energetic entertainment script. Hook the viewer in the first ten seconds and keep the pacing fast.",
	episode.StylePodcast:       "Write a conversational podcast-style monologue. Use a relaxed, first-person voice with natural asides.",
	episode.StyleTutorial:      "Write a hands-on tutorial script. Number the steps, call out prerequisites up front, and warn about common mistakes.",
	episode.StyleInterview:     "Write an interview-style script alternating between a host and a guest. Prefix narration with the speaker's role.",
}

func stylePrompt(style episode.ContentStyle) string {
	if prompt, ok := stylePrompts[style]; ok {
		return prompt
	}
	return stylePrompts[episode.StyleEducational]
}

// templatePrompt renders a stored template into prompt text: the free-form
// prompt first, then the section plan as explicit structural instructions.
func templatePrompt(tpl *episode.ContentTemplate) string {
	var sb strings.Builder
	if prompt := strings.TrimSpace(tpl.PromptTemplate); prompt != "" {
		sb.WriteString(prompt)
	}
	if len(tpl.Sections) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Structure the script with exactly these sections, in order:\n")
		for i, section := range tpl.Sections {
			fmt.Fprintf(&sb, "%d. %s, about %.0f seconds", i+1, section.Type, section.DurationSeconds)
			if hint := strings.TrimSpace(section.Template); hint != "" {
				fmt.Fprintf(&sb, ": %s", hint)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func buildUserPrompt(ep *episode.Episode) string {
	var sb strings.Builder
	if title := strings.TrimSpace(ep.Title); title != "" {
		fmt.Fprintf(&sb, "Episode title: %s\n", title)
	}
	if topic := strings.TrimSpace(ep.Topic); topic != "" {
		fmt.Fprintf(&sb, "Topic: %s\n", topic)
	}
	minutes := ep.TargetDurationMinutes
	if minutes <= 0 {
		minutes = config.DefaultTargetDurationMinutes
	}
	fmt.Fprintf(&sb, "Target duration: about %d minutes of narration.\n", minutes)
	sb.WriteString("Produce the full script now.")
	return sb.String()
}
