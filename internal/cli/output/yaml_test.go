package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintYAML(t *testing.T) {
	data := struct {
		Name  string `yaml:"name"`
		Value int    `yaml:"value"`
	}{Name: "test", Value: 42}

	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, data))

	assert.Contains(t, buf.String(), "name: test")
	assert.Contains(t, buf.String(), "value: 42")
}

func TestPrintYAMLArray(t *testing.T) {
	data := []struct {
		Name string `yaml:"name"`
	}{{Name: "a"}, {Name: "b"}}

	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, data))

	assert.Contains(t, buf.String(), "- name: a")
	assert.Contains(t, buf.String(), "- name: b")
}
