package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Booking ID", "Applicant", "Unit Type"},
		Rows: []map[string]string{
			{"Booking ID": "b1", "Applicant": "Tan Wei Ming", "Unit Type": "THREE_ROOM"},
			{"Booking ID": "b2", "Applicant": "Lim, Jia Hui", "Unit Type": "TWO_ROOM"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Booking ID,Applicant,Unit Type", lines[0])
	assert.Equal(t, "b1,Tan Wei Ming,THREE_ROOM", lines[1])
	// Commas in values are quoted.
	assert.Equal(t, `b2,"Lim, Jia Hui",TWO_ROOM`, lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{})
	assert.Error(t, err)
}
