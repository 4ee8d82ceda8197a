package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Infof("probe %s acquired", "SN0001")
	Warnf("slow frame")
	Errorf("capture failed")

	out := buf.String()
	require.Contains(t, out, "[INFO] probe SN0001 acquired")
	require.Contains(t, out, "[WARN] slow frame")
	require.Contains(t, out, "[ERROR] capture failed")
}

func TestDebugGate(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	SetDebug(false)
	Debugf("hidden")
	require.NotContains(t, buf.String(), "hidden")
	require.False(t, DebugEnabled())

	SetDebug(true)
	defer SetDebug(false)
	Debugf("visible")
	require.Contains(t, buf.String(), "[DEBUG] visible")
	require.True(t, DebugEnabled())
}
