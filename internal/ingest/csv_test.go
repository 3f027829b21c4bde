package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/internal/pipelineconfig"
	"github.com/wonny/leadscore/pkg/logger"
)

func testColumns() pipelineconfig.Columns {
	return pipelineconfig.Columns{
		EntityID:       "id",
		ConversionDate: "close_date",
		Revenue:        "mrr",
		EventTime:      "timestamp",
		Firmographics:  []string{"industry", "employee_range", "alexa_rank"},
		Counters:       []string{"actions_email", "users_email"},
	}
}

func newTestReader(paths Paths) *CSVReader {
	return NewCSVReader(paths, testColumns(), logger.Nop())
}

const payingCSV = `ID,CLOSE_DATE,MRR,INDUSTRY,EMPLOYEE_RANGE,ALEXA_RANK
E,2024-03-10,120.5,SaaS,51-200,1200
P,2024-04-01 08:30:00,,Retail,,
`

const nonPayingCSV = `id,industry,employee_range
F,Media,"1,000"
`

const usageCSV = `id,timestamp,actions_email,users_email
E,2024-02-01T10:00:00Z,3,1
E,2024-02-01 22:15:00,,2
F,2024-01-05,1.5,
`

func TestCSVReader_ReadEntities(t *testing.T) {
	r := newTestReader(Paths{})

	paying, err := r.ReadEntities(strings.NewReader(payingCSV), true)
	require.NoError(t, err)
	require.Len(t, paying, 2)

	e := paying[0]
	assert.Equal(t, "E", e.ID)
	require.NotNil(t, e.ConversionDate)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *e.ConversionDate)
	require.NotNil(t, e.Revenue)
	assert.Equal(t, 120.5, *e.Revenue)
	assert.Equal(t, "51-200", e.Firmographics["employee_range"])

	p := paying[1]
	assert.Nil(t, p.Revenue)
	assert.Equal(t, "", p.Firmographics["alexa_rank"])

	nonPaying, err := r.ReadEntities(strings.NewReader(nonPayingCSV), false)
	require.NoError(t, err)
	require.Len(t, nonPaying, 1)
	assert.Nil(t, nonPaying[0].ConversionDate)
	assert.Equal(t, "1,000", nonPaying[0].Firmographics["employee_range"])
	_, present := nonPaying[0].Firmographics["alexa_rank"]
	assert.False(t, present, "absent column stays absent")
}

func TestCSVReader_ReadUsage(t *testing.T) {
	rows, err := newTestReader(Paths{}).ReadUsage(strings.NewReader(usageCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, map[string]float64{"actions_email": 3, "users_email": 1}, rows[0].Counters)
	assert.Equal(t, map[string]float64{"users_email": 2}, rows[1].Counters)
	assert.Equal(t, time.Date(2024, 2, 1, 22, 15, 0, 0, time.UTC), rows[1].Timestamp)
	assert.Equal(t, 1.5, rows[2].Counters["actions_email"])
}

func TestCSVReader_Errors(t *testing.T) {
	r := newTestReader(Paths{})

	tests := []struct {
		name string
		run  func() error
	}{
		{"paying without conversion column", func() error {
			_, err := r.ReadEntities(strings.NewReader("id,industry\nE,SaaS\n"), true)
			return err
		}},
		{"bad conversion date", func() error {
			_, err := r.ReadEntities(strings.NewReader("id,close_date\nE,soon\n"), true)
			return err
		}},
		{"missing counter column", func() error {
			_, err := r.ReadUsage(strings.NewReader("id,timestamp,actions_email\nE,2024-01-01,1\n"))
			return err
		}},
		{"bad counter value", func() error {
			_, err := r.ReadUsage(strings.NewReader("id,timestamp,actions_email,users_email\nE,2024-01-01,x,1\n"))
			return err
		}},
		{"ragged row", func() error {
			_, err := r.ReadUsage(strings.NewReader("id,timestamp,actions_email,users_email\nE,2024-01-01,1\n"))
			return err
		}},
		{"empty input", func() error {
			_, err := r.ReadUsage(strings.NewReader(""))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.run())
		})
	}
}

func TestCSVReader_Read(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	r := newTestReader(Paths{
		Paying:    write("paying.csv", payingCSV),
		NonPaying: write("non_paying.csv", nonPayingCSV),
		Usage:     write("usage.csv", usageCSV),
	})

	tables, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, tables.Paying, 2)
	assert.Len(t, tables.NonPaying, 1)
	assert.Len(t, tables.Usage, 3)

	missing := newTestReader(Paths{Paying: filepath.Join(dir, "nope.csv")})
	_, err = missing.Read(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-01-05T09:30:00Z",
		"2024-01-05T18:30:00+09:00",
		"2024-01-05 09:30:00",
		"2024-01-05T09:30:00",
		"2024-01-05 09:30",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	got, err := ParseTimestamp("2024/01/05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseTimestamp("")
	assert.Error(t, err)
	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
