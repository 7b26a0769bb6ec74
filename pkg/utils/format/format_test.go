package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	require.Equal(t, "0:00", Duration(0))
	require.Equal(t, "5:32", Duration(332))
	require.Equal(t, "1:00:05", Duration(3605))
	require.Equal(t, "", Duration(-1))
}

func TestSize(t *testing.T) {
	require.Equal(t, "512 B", Size(512))
	require.Equal(t, "1.5 KiB", Size(1536))
	require.Equal(t, "", Size(-1))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 300))

	long := strings.Repeat("é", 301)
	got := Truncate(long, 300)
	require.Equal(t, strings.Repeat("é", 300)+"...", got)
}
