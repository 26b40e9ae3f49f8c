package episode

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an episode.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusGeneratingScript Status = "generating_script"
	StatusGeneratingAudio  Status = "generating_audio"
	StatusGeneratingVideo  Status = "generating_video"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

var allStatuses = []Status{
	StatusDraft,
	StatusGeneratingScript,
	StatusGeneratingAudio,
	StatusGeneratingVideo,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var generatingStatuses = map[Status]struct{}{
	StatusGeneratingScript: {},
	StatusGeneratingAudio:  {},
	StatusGeneratingVideo:  {},
}

// validTransitions enumerates every legal status edge. Self-edges on the
// generating states model retries of the same stage.
var validTransitions = map[Status][]Status{
	StatusDraft:            {StatusGeneratingScript, StatusCancelled},
	StatusGeneratingScript: {StatusGeneratingAudio, StatusGeneratingScript, StatusFailed, StatusCancelled},
	StatusGeneratingAudio:  {StatusGeneratingVideo, StatusGeneratingAudio, StatusFailed, StatusCancelled},
	StatusGeneratingVideo:  {StatusCompleted, StatusGeneratingVideo, StatusFailed, StatusCancelled},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether no further transitions leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Generating reports whether the status reflects an in-flight stage.
func (s Status) Generating() bool {
	_, ok := generatingStatuses[s]
	return ok
}

// CanTransition reports whether the from→to edge exists in the state machine.
// A self-edge on a generating status represents a retry of that stage.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// NextStatus returns the status an episode advances to when the stage running
// under the given generating status succeeds.
func NextStatus(current Status) (Status, bool) {
	switch current {
	case StatusDraft:
		return StatusGeneratingScript, true
	case StatusGeneratingScript:
		return StatusGeneratingAudio, true
	case StatusGeneratingAudio:
		return StatusGeneratingVideo, true
	case StatusGeneratingVideo:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// ContentStyle selects the script generation prompt family.
type ContentStyle string

const (
	StyleEducational   ContentStyle = "educational"
	StyleNews          ContentStyle = "news"
	StyleEntertainment ContentStyle = "entertainment"
	StylePodcast       ContentStyle = "podcast"
	StyleTutorial      ContentStyle = "tutorial"
	StyleInterview     ContentStyle = "interview"
)

var allStyles = []ContentStyle{
	StyleEducational,
	StyleNews,
	StyleEntertainment,
	StylePodcast,
	StyleTutorial,
	StyleInterview,
}

// AllStyles returns the ordered list of known content styles.
func AllStyles() []ContentStyle {
	cp := make([]ContentStyle, len(allStyles))
	copy(cp, allStyles)
	return cp
}

// ParseStyle converts a string into a known ContentStyle. Empty input maps to
// the educational default.
func ParseStyle(value string) (ContentStyle, bool) {
	normalized := ContentStyle(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return StyleEducational, true
	}
	for _, style := range allStyles {
		if style == normalized {
			return style, true
		}
	}
	return "", false
}

// Episode represents a generated video episode persisted in SQLite.
type Episode struct {
	ID                    string
	Title                 string
	Topic                 string
	ContentStyle          ContentStyle
	TargetDurationMinutes int
	Status                Status
	RetryCount            int
	ErrorMessage          string
	ScriptJSON            string
	AudioPath             string
	VideoPath             string
	MetadataJSON          string
	Tags                  []string
	CancelRequested       bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
	GenerationStartedAt   *time.Time
	CompletedAt           *time.Time
}

// IsGenerating returns true when the episode is mid-pipeline.
func (e Episode) IsGenerating() bool {
	return e.Status.Generating()
}

// SetFailed marks the episode as terminally failed with the given message.
func (e *Episode) SetFailed(message string) {
	e.Status = StatusFailed
	e.ErrorMessage = message
}

// GenerationDuration returns the wall-clock time from admission to completion.
// The second return is false while either timestamp is missing.
func (e Episode) GenerationDuration() (time.Duration, bool) {
	if e.GenerationStartedAt == nil || e.CompletedAt == nil {
		return 0, false
	}
	return e.CompletedAt.Sub(*e.GenerationStartedAt), true
}

// EventType classifies entries in the generation audit log.
type EventType string

const (
	EventStarted        EventType = "started"
	EventSucceeded      EventType = "succeeded"
	EventFailed         EventType = "failed"
	EventRetryScheduled EventType = "retry_scheduled"
	EventCancelled      EventType = "cancelled"
)

// LogEntry is one append-only row of the generation audit trail.
type LogEntry struct {
	ID              int64
	EpisodeID       string
	Stage           string
	EventType       EventType
	Message         string
	ErrorKind       string
	Attempt         int
	ExecutionTimeMS int64
	MetadataJSON    string
	CreatedAt       time.Time
}

// ContentTemplate stores a reusable prompt skeleton for a content style: a
// free-text prompt plus an ordered section plan with per-section target
// durations. Retired templates keep their rows but drop out of style lookup
// once IsActive is cleared.
type ContentTemplate struct {
	ID             int64
	Name           string
	Description    string
	ContentStyle   ContentStyle
	PromptTemplate string
	Sections       []TemplateSection
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TemplateSection is one slot of a template's section plan.
type TemplateSection struct {
	Type            SectionType `json:"type"`
	DurationSeconds float64     `json:"duration_seconds"`
	Template        string      `json:"template,omitempty"`
}

// StatsSummary aggregates episode counts for diagnostic output.
type StatsSummary struct {
	Total      int
	Draft      int
	Generating int
	Completed  int
	Failed     int
	Cancelled  int
}
