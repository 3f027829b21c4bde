package handoff

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Playbook is one allowed (behavior, stage, focus) combination
type Playbook struct {
	BehaviorPattern string `json:"behavior_pattern" yaml:"behavior_pattern"`
	LikelyStage     string `json:"likely_stage" yaml:"likely_stage"`
	PlaybookFocus   string `json:"playbook_focus" yaml:"playbook_focus"`
}

// Taxonomy is the closed vocabulary annotations are validated against
type Taxonomy struct {
	behaviors map[string]bool
	stages    map[string]bool
	focuses   map[string]bool
	urgencies map[string]bool
}

// Urgency values
const (
	UrgencyReachOutNow = "reach_out_now"
	UrgencyNurture     = "nurture"
	UrgencyReactivate  = "reactivate"
)

// DefaultPlaybooks is the built-in segmentation vocabulary
var DefaultPlaybooks = []Playbook{
	{"High Deals + Multi-user", "Pipeline-driven", "Forecasting + automation"},
	{"High Email", "Outreach-focused", "Sequences + tracking"},
	{"High Contacts only", "Early stage", "Pipeline setup"},
	{"Single-user heavy", "Expansion opportunity", "Team invites"},
	{"Multi-user low activity", "Stalled", "Reactivation"},
	{"Balanced usage", "High intent", "Direct upgrade"},
}

// DefaultUrgencies is the built-in urgency vocabulary
var DefaultUrgencies = []string{UrgencyReachOutNow, UrgencyNurture, UrgencyReactivate}

// NewTaxonomy builds a taxonomy; empty inputs fall back to the defaults
func NewTaxonomy(playbooks []Playbook, urgencies []string) *Taxonomy {
	if len(playbooks) == 0 {
		playbooks = DefaultPlaybooks
	}
	if len(urgencies) == 0 {
		urgencies = DefaultUrgencies
	}

	t := &Taxonomy{
		behaviors: make(map[string]bool),
		stages:    make(map[string]bool),
		focuses:   make(map[string]bool),
		urgencies: make(map[string]bool),
	}
	for _, p := range playbooks {
		t.behaviors[p.BehaviorPattern] = true
		t.stages[p.LikelyStage] = true
		t.focuses[p.PlaybookFocus] = true
	}
	for _, u := range urgencies {
		t.urgencies[u] = true
	}
	return t
}

// Annotation is the validated segmentation output for one row.
// Fields outside the taxonomy are nil, never guessed.
type Annotation struct {
	BehaviorPattern *string `json:"behavior_pattern"`
	LikelyStage     *string `json:"likely_stage"`
	PlaybookFocus   *string `json:"playbook_focus"`
	Urgency         *string `json:"urgency"`
	SubjectLine     *string `json:"subject_line"`
	OpeningLine     *string `json:"opening_line"`
}

// Empty reports whether nothing survived validation
func (a Annotation) Empty() bool {
	return a.BehaviorPattern == nil && a.LikelyStage == nil && a.PlaybookFocus == nil &&
		a.Urgency == nil && a.SubjectLine == nil && a.OpeningLine == nil
}

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseAnnotation parses collaborator text (optionally wrapped in a
// markdown code fence) and validates categories against the taxonomy.
// Unparseable text yields an empty annotation, not an error.
func ParseAnnotation(text string, taxonomy *Taxonomy) Annotation {
	text = strings.TrimSpace(text)
	if m := fenced.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Annotation{}
	}

	return Annotation{
		BehaviorPattern: allowed(raw["behavior_pattern"], taxonomy.behaviors),
		LikelyStage:     allowed(raw["likely_stage"], taxonomy.stages),
		PlaybookFocus:   allowed(raw["playbook_focus"], taxonomy.focuses),
		Urgency:         allowed(raw["urgency"], taxonomy.urgencies),
		SubjectLine:     passthrough(raw["subject_line"]),
		OpeningLine:     passthrough(raw["opening_line"]),
	}
}

func allowed(v interface{}, set map[string]bool) *string {
	s, ok := v.(string)
	if !ok || !set[s] {
		return nil
	}
	return &s
}

func passthrough(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
