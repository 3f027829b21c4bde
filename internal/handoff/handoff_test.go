package handoff

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/internal/contracts"
)

func day(s string) time.Time {
	d, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleTable() *contracts.FeatureTable {
	return &contracts.FeatureTable{
		Schema: contracts.FeatureSchema{Names: []string{"actions_7d_sum"}},
		Rows: []contracts.FeatureRow{
			{EntityID: "A", SnapshotDate: day("2024-01-07"), Features: []float64{1}},
			{EntityID: "B", SnapshotDate: day("2024-01-07"), Features: []float64{2}},
			{EntityID: "A", SnapshotDate: day("2024-01-14"), Features: []float64{3}},
			{EntityID: "C", SnapshotDate: day("2024-01-14"), Features: []float64{4}},
		},
	}
}

func TestTopK(t *testing.T) {
	table := sampleTable()
	scores := []Score{
		{EntityID: "A", SnapshotDate: day("2024-01-07"), Score: 0.2},
		{EntityID: "B", SnapshotDate: day("2024-01-07"), Score: 0.9},
		{EntityID: "A", SnapshotDate: day("2024-01-14"), Score: 0.5},
		{EntityID: "C", SnapshotDate: day("2024-01-14"), Score: 0.5},
	}

	top, err := TopK(table, scores, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, "B", top[0].Row.EntityID)
	assert.Equal(t, 1, top[0].Rank)
	// tie at 0.5: table order wins
	assert.Equal(t, "A", top[1].Row.EntityID)
	assert.Equal(t, "C", top[2].Row.EntityID)
	assert.Equal(t, 3, top[2].Rank)

	// the table is not touched
	assert.Equal(t, sampleTable(), table)
}

func TestTopKAllAndPartial(t *testing.T) {
	table := sampleTable()
	scores := []Score{
		{EntityID: "C", SnapshotDate: day("2024-01-14"), Score: 0.1},
		{EntityID: "A", SnapshotDate: day("2024-01-07"), Score: 0.3},
	}

	top, err := TopK(table, scores, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "A", top[0].Row.EntityID)

	top, err = TopK(table, scores, 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestTopKUnknownRow(t *testing.T) {
	_, err := TopK(sampleTable(), []Score{
		{EntityID: "A", SnapshotDate: day("2024-01-21"), Score: 0.9},
	}, 1)
	require.Error(t, err)

	var unknown *UnknownRowError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "A", unknown.Key.EntityID)
}

func TestTopKRejectsInvalidScores(t *testing.T) {
	valid := []Score{
		{EntityID: "A", SnapshotDate: day("2024-01-07"), Score: 0.2},
		{EntityID: "B", SnapshotDate: day("2024-01-07"), Score: 0.9},
	}

	tests := []struct {
		name  string
		extra Score
	}{
		{"nan", Score{EntityID: "C", SnapshotDate: day("2024-01-14"), Score: math.NaN()}},
		{"positive infinity", Score{EntityID: "C", SnapshotDate: day("2024-01-14"), Score: math.Inf(1)}},
		{"negative infinity", Score{EntityID: "C", SnapshotDate: day("2024-01-14"), Score: math.Inf(-1)}},
		{"duplicate row", Score{EntityID: "A", SnapshotDate: day("2024-01-07"), Score: 0.95}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// invalid entry placed first and last so order cannot hide it
			for _, scores := range [][]Score{
				append([]Score{tt.extra}, valid...),
				append(append([]Score{}, valid...), tt.extra),
			} {
				_, err := TopK(sampleTable(), scores, 1)
				var invalid *InvalidScoreError
				require.True(t, errors.As(err, &invalid), "got %v", err)
				assert.Equal(t, tt.extra.EntityID, invalid.Key.EntityID)
			}
		})
	}
}

func TestTopKFindsMaximumAmongManyRows(t *testing.T) {
	table := &contracts.FeatureTable{Schema: contracts.FeatureSchema{Names: []string{"x"}}}
	var scores []Score
	start := day("2024-01-07")
	for i := 0; i < 40; i++ {
		id := string(rune('a' + i%26))
		date := start.AddDate(0, 0, 7*(i/26))
		table.Rows = append(table.Rows, contracts.FeatureRow{EntityID: id, SnapshotDate: date, Features: []float64{0}})
		scores = append(scores, Score{EntityID: id, SnapshotDate: date, Score: float64((i*17)%40) / 40})
	}

	top, err := TopK(table, scores, 3)
	require.NoError(t, err)
	assert.InDelta(t, 39.0/40, top[0].Score, 1e-12)
	assert.InDelta(t, 38.0/40, top[1].Score, 1e-12)
	assert.InDelta(t, 37.0/40, top[2].Score, 1e-12)
}

func TestParseAnnotation(t *testing.T) {
	tax := NewTaxonomy(nil, nil)

	t.Run("fenced json", func(t *testing.T) {
		text := "```json\n{\"behavior_pattern\": \"High Email\", \"likely_stage\": \"Outreach-focused\"," +
			" \"playbook_focus\": \"Sequences + tracking\", \"urgency\": \"nurture\"," +
			" \"subject_line\": \"Quick idea\", \"opening_line\": \"Saw your team\"}\n```"
		a := ParseAnnotation(text, tax)
		require.NotNil(t, a.BehaviorPattern)
		assert.Equal(t, "High Email", *a.BehaviorPattern)
		assert.Equal(t, "Outreach-focused", *a.LikelyStage)
		assert.Equal(t, "Sequences + tracking", *a.PlaybookFocus)
		assert.Equal(t, UrgencyNurture, *a.Urgency)
		assert.Equal(t, "Quick idea", *a.SubjectLine)
		assert.Equal(t, "Saw your team", *a.OpeningLine)
	})

	t.Run("out of taxonomy values are dropped", func(t *testing.T) {
		a := ParseAnnotation(`{"behavior_pattern": "Loves email", "urgency": "asap", "likely_stage": "Stalled"}`, tax)
		assert.Nil(t, a.BehaviorPattern)
		assert.Nil(t, a.Urgency)
		require.NotNil(t, a.LikelyStage)
		assert.Equal(t, "Stalled", *a.LikelyStage)
		assert.False(t, a.Empty())
	})

	t.Run("non string values are dropped", func(t *testing.T) {
		a := ParseAnnotation(`{"subject_line": 42, "urgency": ["nurture"]}`, tax)
		assert.True(t, a.Empty())
	})

	t.Run("garbage", func(t *testing.T) {
		assert.True(t, ParseAnnotation("sorry, I cannot help with that", tax).Empty())
		assert.True(t, ParseAnnotation("", tax).Empty())
		assert.True(t, ParseAnnotation("```\nnot json\n```", tax).Empty())
	})

	t.Run("bare fence", func(t *testing.T) {
		a := ParseAnnotation("```\n{\"urgency\": \"reactivate\"}\n```", tax)
		require.NotNil(t, a.Urgency)
		assert.Equal(t, UrgencyReactivate, *a.Urgency)
	})
}

func TestLoadTaxonomy(t *testing.T) {
	tax, err := LoadTaxonomy("")
	require.NoError(t, err)
	assert.True(t, tax.behaviors["Balanced usage"])
	assert.True(t, tax.urgencies[UrgencyReachOutNow])

	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
playbooks:
  - behavior_pattern: Heavy API
    likely_stage: Integration
    playbook_focus: Developer success
urgencies: [now, later]
`), 0o644))

	tax, err = LoadTaxonomy(path)
	require.NoError(t, err)
	assert.True(t, tax.behaviors["Heavy API"])
	assert.False(t, tax.behaviors["High Email"])
	assert.True(t, tax.urgencies["later"])

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("playbook: []\n"), 0o644))
	_, err = LoadTaxonomy(bad)
	assert.Error(t, err)

	incomplete := filepath.Join(dir, "incomplete.yaml")
	require.NoError(t, os.WriteFile(incomplete, []byte("playbooks:\n  - behavior_pattern: X\n"), 0o644))
	_, err = LoadTaxonomy(incomplete)
	assert.Error(t, err)
}

func TestReadScores(t *testing.T) {
	in := "score,entity_id,snapshot_date\n0.7, A ,2024-01-07\n0.1,B,2024-01-07\n"
	scores, err := ReadScores(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "A", scores[0].EntityID)
	assert.Equal(t, day("2024-01-07"), scores[0].SnapshotDate)
	assert.InDelta(t, 0.7, scores[0].Score, 1e-12)

	top, err := TopK(sampleTable(), scores, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", top[0].Row.EntityID)

	for name, bad := range map[string]string{
		"missing column": "entity_id,score\nA,1\n",
		"bad date":       "entity_id,snapshot_date,score\nA,07/01/2024,1\n",
		"bad score":      "entity_id,snapshot_date,score\nA,2024-01-07,high\n",
		"nan score":      "entity_id,snapshot_date,score\nA,2024-01-07,NaN\n",
		"inf score":      "entity_id,snapshot_date,score\nA,2024-01-07,+Inf\n",
		"ragged":         "entity_id,snapshot_date,score\nA,2024-01-07\n",
		"empty":          "",
	} {
		_, err := ReadScores(strings.NewReader(bad))
		assert.Error(t, err, name)
	}
}
