package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadStatusStrings(t *testing.T) {
	require.Equal(t, "HIT", HitStatus().String())
	require.Equal(t, "BYPASS", BypassStatus().String())
	require.Equal(t, "MISS", MissStatus(60).String())
	require.Equal(t, "STALE", StaleStatus(false).String())
	require.Equal(t, "UPDATING", StaleStatus(true).String())
}

func TestReadStatusHeadersIncludesCacheControlOnlyOnMiss(t *testing.T) {
	miss := MissStatus(60).Headers()
	require.Equal(t, "MISS", miss[Header])
	require.Equal(t, "public, max-age=60", miss["Cache-Control"])

	hit := HitStatus().Headers()
	require.Equal(t, "HIT", hit[Header])
	require.NotContains(t, hit, "Cache-Control")
}
