package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRayIDPrependsTag(t *testing.T) {
	var buf bytes.Buffer
	base := &logger{out: &buf}

	l := WithRayID(base, "ray-42")
	l.Info("handled request", "status", 200)

	require.Contains(t, buf.String(), "ray_id")
	require.Contains(t, buf.String(), "ray-42")
	require.Contains(t, buf.String(), "status")
}

func TestWithRayIDAppliesToAllLevels(t *testing.T) {
	var buf bytes.Buffer
	base := &logger{out: &buf}
	l := WithRayID(base, "ray-1")

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	require.Equal(t, 4, bytes.Count([]byte(out), []byte("ray_id")))
}
