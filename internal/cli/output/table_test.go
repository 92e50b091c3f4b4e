package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	err := PrintTable(&buf, []string{"Name", "Value"}, [][]string{
		{"key1", "value1"},
		{"key2", "value2"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "VALUE")
	assert.Contains(t, out, "key1")
	assert.Contains(t, out, "value2")
}

func TestPrintTableNoRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, []string{"ID", "Username"}, nil))
	assert.Contains(t, buf.String(), "ID")
}
