package log_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/usbd/internal/log"
)

func TestRawLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	raw := log.NewRaw(&buf)

	raw.Log(0x81, []byte{0xDE, 0xAD})
	raw.Log(0x01, []byte{0x00})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "ep=0x81 IN 2 bytes: de ad")
	assert.Contains(t, lines[1], "ep=0x01 OUT 1 bytes: 00")
}

func TestRawLoggerSkips(t *testing.T) {
	var buf bytes.Buffer
	raw := log.NewRaw(&buf)

	raw.Log(0x81, nil)
	assert.Zero(t, buf.Len(), "empty buffers are not logged")

	assert.NotPanics(t, func() { log.NewRaw(nil).Log(0x81, []byte{1}) })
}
