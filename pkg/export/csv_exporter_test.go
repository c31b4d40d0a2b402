package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	raw, err := exporter.Render(Dataset{
		Headers: []string{"student_id", "percentage"},
		Rows: []map[string]string{
			{"student_id": "student-1", "percentage": "66.67"},
			{"student_id": "student-2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "student_id,percentage\nstudent-1,66.67\nstudent-2,\n", string(raw))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}
