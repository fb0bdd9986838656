package hwinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParentDir(t *testing.T) {
	require.Equal(t, "/a", parentDir("/a/b"))
	require.Equal(t, "/", parentDir("/a"))
	require.Equal(t, "/", parentDir(""))
}

func TestProbeReturnsAtLeastOneCPU(t *testing.T) {
	d := Probe(t.TempDir())
	require.GreaterOrEqual(t, d.CPU, 1)
}
