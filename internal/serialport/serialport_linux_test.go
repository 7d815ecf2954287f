//go:build linux

package serialport

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openPTY returns the master fd and the slave device path of a new
// pseudo-terminal.
func openPTY(t *testing.T) (int, string) {
	t.Helper()
	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	t.Cleanup(func() { _ = unix.Close(master) })

	require.NoError(t, unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0))
	n, err := unix.IoctlGetInt(master, unix.TIOCGPTN)
	require.NoError(t, err)
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

func TestPort_ReadsWhatTheDeviceSends(t *testing.T) {
	master, slave := openPTY(t)

	port, err := Open(slave, 115200)
	require.NoError(t, err)
	defer port.Close()
	assert.Equal(t, slave, port.Name())

	n, err := port.Buffered()
	require.NoError(t, err)
	assert.Zero(t, n, "nothing sent yet")

	want := []byte{'C', 'T', 'F', 0x00, 0xc1, 0x1f}
	_, err = unix.Write(master, want)
	require.NoError(t, err)

	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < len(want) && time.Now().Before(deadline) {
		pending, err := port.Buffered()
		require.NoError(t, err)
		if pending == 0 {
			continue
		}
		buf := make([]byte, pending)
		read, err := port.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, pending, read, "Read returns exactly the buffered bytes")
		got = append(got, buf[:read]...)
	}
	assert.Equal(t, want, got)
}

func TestPort_PartialReadsKeepTheRest(t *testing.T) {
	master, slave := openPTY(t)

	port, err := Open(slave, 1000000)
	require.NoError(t, err)
	defer port.Close()

	_, err = unix.Write(master, []byte("abcd"))
	require.NoError(t, err)

	var pending int
	deadline := time.Now().Add(2 * time.Second)
	for pending == 0 && time.Now().Before(deadline) {
		pending, err = port.Buffered()
		require.NoError(t, err)
	}
	require.Positive(t, pending)

	first := make([]byte, 1)
	n, err := port.Read(first)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('a'), first[0])

	var rest []byte
	deadline = time.Now().Add(2 * time.Second)
	for len(rest) < 3 && time.Now().Before(deadline) {
		left, err := port.Buffered()
		require.NoError(t, err)
		if left == 0 {
			continue
		}
		buf := make([]byte, left)
		n, err := port.Read(buf)
		require.NoError(t, err)
		rest = append(rest, buf[:n]...)
	}
	assert.Equal(t, "bcd", string(rest), "bytes held by Buffered are not lost")
}

func TestList(t *testing.T) {
	_, err := List()
	assert.NoError(t, err)
}
