package fsm

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		".",
		"id",
		"nested.id",
		"<Product>.id",
		"nested<Product>.id",
		"{id}",
		"{id:id nested:nested.id}",
		"[id]",
		"[nested.id]",
		"a.b|c.d",
		"{a:.}",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			sv, err := Parse(src)
			require.NoError(t, err)

			printed := Print(sv)
			again, err := Parse(printed)
			require.NoError(t, err, "re-parsing printed form %q", printed)

			require.True(t, reflect.DeepEqual(sv, again), "round trip mismatch: %q -> %q", src, printed)
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"|a",
		"a|",
		"a||b",
		"[]",
		"<>",
		"a.",
		".a",
		"{}extra",
		"a.b.",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseDuplicateObjectKeysAccepted(t *testing.T) {
	sv, err := Parse("{a:id a:nested.id}")
	require.NoError(t, err)
	obj := sv.Entries[0].(Object)
	require.Len(t, obj.Fields, 2)
}
