package output

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, row{Name: "a", Count: 2}))
	assert.Equal(t, "{\n  \"name\": \"a\",\n  \"count\": 2\n}\n", buf.String())
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, []row{{Name: "a", Count: 2}}))
	assert.Equal(t, "- name: a\n  count: 2\n", buf.String())
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tw := Table(&buf)
	fmt.Fprintln(tw, "NAME\tCOUNT")
	fmt.Fprintln(tw, "services\t4")
	require.NoError(t, tw.Flush())
	assert.Equal(t, "NAME      COUNT\nservices  4\n", buf.String())
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	Warn(&buf, "token %s", "missing")
	assert.Equal(t, "Warning: token missing\n", buf.String())
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{FormatTable, FormatJSON, FormatYAML} {
		assert.NoError(t, CheckFormat(f), f)
	}
	assert.Error(t, CheckFormat("xml"))
}
