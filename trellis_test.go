package trellis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTraceID(t *testing.T) {
	id := Hash([]byte("00000000\n"))
	require.False(t, id.IsZero())
	actual, err := ParseTraceID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, actual)
	require.Equal(t, id.String()[:12], id.Short())

	_, err = ParseTraceID(id.String()[:10])
	require.Error(t, err)
	_, err = ParseTraceID("zz")
	require.Error(t, err)
}
