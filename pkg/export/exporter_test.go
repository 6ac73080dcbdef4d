package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Approval drift",
		Headers: []string{"approval_id", "management_status"},
		Rows: [][]string{
			{"a1", "pending"},
			{"a2", "rejected"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "approval_id,management_status\na1,pending\na2,rejected\n", string(out))
}

func TestCSVExporterQuotesCells(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{Headers: []string{"reason"}, Rows: [][]string{{"late, again"}}})
	require.NoError(t, err)
	assert.Equal(t, "reason\n\"late, again\"\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	empty, err := NewPDFExporter().Render(Dataset{Headers: []string{"approval_id"}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF")))
}

func TestExportersRejectMalformedDatasets(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)

	ragged := Dataset{Headers: []string{"a", "b"}, Rows: [][]string{{"only-one"}}}
	_, err = NewCSVExporter().Render(ragged)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0 has 1 cells, want 2")
}

func TestForFormat(t *testing.T) {
	r, ok := ForFormat(" PDF ")
	require.True(t, ok)
	assert.Equal(t, "pdf", r.Extension())

	_, ok = ForFormat("xlsx")
	assert.False(t, ok)
}
