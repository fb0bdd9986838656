package content

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	require.Less(t, compareVersions("0.18.0", "0.32.1"), 0)
	require.Greater(t, compareVersions("1.0.0", "0.32.1"), 0)
	require.Equal(t, 0, compareVersions("0.32.1", "0.32.1"))
}

func TestVersionBelow(t *testing.T) {
	require.True(t, versionBelow("0.18.0", MinimumDaemonVersion))
	require.False(t, versionBelow("0.32.1", MinimumDaemonVersion))
	require.False(t, versionBelow("1.0.0", MinimumDaemonVersion))
}

func TestStripCIDPrefix(t *testing.T) {
	require.Equal(t, "file.txt", stripCIDPrefix("bafycid/file.txt", "bafycid"))
	require.Equal(t, "", stripCIDPrefix("bafycid", "bafycid"))
}

func TestExtractTarStripsPaxHeadersAndCIDPrefix(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "PaxHeaders.0/bafycid/file.txt",
		Typeflag: tar.TypeReg,
		Size:     0,
		Mode:     0o644,
	}))
	content := []byte("hello world")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "bafycid/file.txt",
		Typeflag: tar.TypeReg,
		Size:     int64(len(content)),
		Mode:     0o644,
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	dir := t.TempDir()
	require.NoError(t, extractTar(&buf, "bafycid", dir))

	got, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	require.Equal(t, content, got)

	_, err = os.Stat(filepath.Join(dir, "PaxHeaders.0"))
	require.True(t, os.IsNotExist(err), "PaxHeaders entries must not be extracted")
}

func TestIsLoopback(t *testing.T) {
	require.True(t, isLoopback("localhost:5001"))
	require.True(t, isLoopback("127.0.0.1:5001"))
	require.False(t, isLoopback("ipfs.example.com:5001"))
}
