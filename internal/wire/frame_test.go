package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildParse_roundTrips(t *testing.T) {
	srcMAC := net.HardwareAddr{0x00, 0x16, 0x36, 0x01, 0x02, 0x03}
	dstMAC := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	srcIP := [4]byte{0, 0, 0, 0}
	dstIP := [4]byte{255, 255, 255, 255}
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}

	var buf [2048]byte
	n, err := Build(buf[:], srcMAC, dstMAC, srcIP, dstIP, ClientPort, ServerPort, payload)
	require.NoError(t, err)

	// Odd-length payload gets one checksum-only pad byte appended.
	wantTotal := EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen + len(payload) + 1
	require.Equal(t, wantTotal, n)

	ipAndUp := buf[EthernetHeaderLen:n]
	f, ok := Parse(ipAndUp)
	require.True(t, ok)
	require.Equal(t, ClientPort, int(f.SrcPort))
	require.Equal(t, ServerPort, int(f.DstPort))

	// The parsed payload includes the trailing pad byte; the caller
	// knows its real length separately (from the DHCP message codec).
	require.Equal(t, payload, f.Payload[:len(payload)])
}

func TestParse_rejectsNonUDP(t *testing.T) {
	buf := make([]byte, IPv4HeaderLen+UDPHeaderLen)
	buf[0] = 0x45
	buf[9] = 6 // TCP, not UDP

	_, ok := Parse(buf)
	require.False(t, ok)
}

func TestParse_rejectsWrongPort(t *testing.T) {
	buf := make([]byte, IPv4HeaderLen+UDPHeaderLen)
	buf[0] = 0x45
	buf[9] = protocolUDP
	buf[IPv4HeaderLen+2] = 0x00
	buf[IPv4HeaderLen+3] = 53 // DNS, not DHCP

	_, ok := Parse(buf)
	require.False(t, ok)
}

func TestBuild_tooSmallBuffer(t *testing.T) {
	var buf [4]byte
	_, err := Build(buf[:], nil, nil, [4]byte{}, [4]byte{}, 0, 0, nil)
	require.Error(t, err)
}
