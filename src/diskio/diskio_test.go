package diskio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
)

func TestFileDiskReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := OpenFileDisk(path, 4, 0)
	require.NoError(t, err)
	defer d.Close()
	require.Equal(t, defs.Mkdev(defs.D_RAWDISK, 0), d.Dev())

	block := make([]byte, BlockSize)
	for i := range block {
		block[i] = byte(i)
	}
	require.NoError(t, d.WriteBlock(2, block))

	got := make([]byte, BlockSize)
	require.NoError(t, d.ReadBlock(2, got))
	require.Equal(t, block, got)

	other := make([]byte, BlockSize)
	require.NoError(t, d.ReadBlock(0, other))
	for _, b := range other {
		require.Zero(t, b)
	}
}

func TestMemDiskReadWriteRoundTrip(t *testing.T) {
	d := NewMemDisk()
	block := make([]byte, BlockSize)
	for i := range block {
		block[i] = byte(i % 256)
	}
	require.NoError(t, d.WriteBlock(7, block))

	got := make([]byte, BlockSize)
	require.NoError(t, d.ReadBlock(7, got))
	require.Equal(t, block, got)

	unwritten := make([]byte, BlockSize)
	require.NoError(t, d.ReadBlock(1, unwritten))
	for _, b := range unwritten {
		require.Zero(t, b)
	}
}
