package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("ID", "State", "Restarts")

	assert.Equal(t, []string{"ID", "State", "Restarts"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("1", "running", "0")
	table.AddRow("2", "running", "3")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "running", "0"}, rows[0])
	assert.Equal(t, []string{"2", "running", "3"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("ID", "State")
	table.AddRow("1", "running")
	table.AddRow("2", "crashed")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATE")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "crashed")
}

func TestSimpleTable(t *testing.T) {
	pairs := [][2]string{
		{"Service", "stevedore"},
		{"Status", "healthy"},
	}

	var buf bytes.Buffer
	err := SimpleTable(&buf, pairs)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Service")
	assert.Contains(t, output, "stevedore")
	assert.Contains(t, output, "Status")
	assert.Contains(t, output, "healthy")
}
