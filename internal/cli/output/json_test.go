package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintJSON(t *testing.T) {
	data := struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}{Name: "test", Value: 42}

	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, data))

	assert.Contains(t, buf.String(), `"name": "test"`)
	assert.Contains(t, buf.String(), `"value": 42`)
}

func TestPrintJSONArray(t *testing.T) {
	data := []map[string]string{{"name": "a"}, {"name": "b"}}

	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, data))

	assert.Contains(t, buf.String(), `"name": "a"`)
	assert.Contains(t, buf.String(), `"name": "b"`)
}
