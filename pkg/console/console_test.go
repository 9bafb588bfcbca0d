package console

import (
	"bytes"
	"strings"
	"testing"

	"sharehub/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestPaneSetStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPane(&buf)

	p.SetStatus("Waiting for the clients...")
	assert.Contains(t, buf.String(), "Waiting for the clients...")
}

func TestPaneAddLog(t *testing.T) {
	var buf bytes.Buffer
	p := NewPane(&buf)

	p.AddLog(types.LogInfo, "client connected")
	p.AddLog(types.LogError, "something broke")
	p.AddLog(types.LogSuccess, "file stored")

	out := buf.String()
	assert.Contains(t, out, "[INFO] client connected")
	assert.Contains(t, out, "[ERROR] something broke")
	assert.Contains(t, out, "[SUCCESS] file stored")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
