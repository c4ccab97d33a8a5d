package wire

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/mdlayher/ethernet"
)

const (
	// protocolUDP is the IPv4 protocol number carried in the protocol field
	// and the UDP pseudo-header.
	protocolUDP = 17

	// EthernetHeaderLen is the length of an untagged Ethernet II header.
	EthernetHeaderLen = 14

	// IPv4HeaderLen is the length of an IPv4 header with no options
	// (IHL == 5).
	IPv4HeaderLen = 20

	// UDPHeaderLen is the length of a UDP header.
	UDPHeaderLen = 8

	// ipv4TTL is the time-to-live this tool stamps on every outgoing
	// packet.
	ipv4TTL = 64

	// ipv4DontFragment is the DF bit position within the 16-bit
	// flags/fragment-offset field.
	ipv4DontFragment = 1 << 14
)

// ServerPort and ClientPort are the well-known DHCP UDP ports.
const (
	ServerPort = 67
	ClientPort = 68
)

// Build assembles an Ethernet/IPv4/UDP frame carrying payload and returns the
// number of bytes written to dst. srcIP and dstIP are 4-byte IPv4 addresses
// in network byte order. It reports an error if dst is too small for the
// frame, including the one-byte checksum pad appended when payload has odd
// length.
func Build(
	dst []byte,
	srcMAC, dstMAC net.HardwareAddr,
	srcIP, dstIP [4]byte,
	srcPort, dstPort uint16,
	payload []byte,
) (n int, err error) {
	pad := 0
	if len(payload)%2 != 0 {
		pad = 1
	}

	total := EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen + len(payload) + pad
	if len(dst) < total {
		return 0, fmt.Errorf("wire: buffer of %d bytes too small for %d-byte frame", len(dst), total)
	}

	udplen := uint16(UDPHeaderLen + len(payload))

	ipStart := EthernetHeaderLen
	udpStart := ipStart + IPv4HeaderLen
	dataStart := udpStart + UDPHeaderLen

	ipHdr := dst[ipStart:udpStart]
	for i := range ipHdr {
		ipHdr[i] = 0
	}
	ipHdr[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ipHdr[2:4], uint16(IPv4HeaderLen)+udplen)
	binary.BigEndian.PutUint16(ipHdr[6:8], ipv4DontFragment)
	ipHdr[8] = ipv4TTL
	ipHdr[9] = byte(layers.IPProtocolUDP)
	copy(ipHdr[12:16], srcIP[:])
	copy(ipHdr[16:20], dstIP[:])
	binary.BigEndian.PutUint16(ipHdr[10:12], ipv4Checksum(ipHdr))

	udpHdr := dst[udpStart:dataStart]
	binary.BigEndian.PutUint16(udpHdr[0:2], srcPort)
	binary.BigEndian.PutUint16(udpHdr[2:4], dstPort)
	binary.BigEndian.PutUint16(udpHdr[4:6], udplen)

	n = copy(dst[dataStart:], payload)
	if pad == 1 {
		dst[dataStart+n] = 0
	}

	binary.BigEndian.PutUint16(udpHdr[6:8], 0)
	binary.BigEndian.PutUint16(
		udpHdr[6:8],
		udpChecksum(srcIP, dstIP, udplen, dst[udpStart:dataStart+len(payload)+pad]),
	)

	eth := ethernet.Frame{
		Destination: dstMAC,
		Source:      srcMAC,
		EtherType:   ethernet.EtherType(layers.EthernetTypeIPv4),
		Payload:     dst[ipStart:total],
	}
	ethBytes, err := eth.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("wire: marshaling ethernet header: %w", err)
	}
	copy(dst, ethBytes[:EthernetHeaderLen])

	return total, nil
}

// Frame is a parsed IPv4/UDP datagram with protocol == UDP, as handed up by
// a SOCK_DGRAM packet socket (the kernel has already stripped the Ethernet
// header for that socket type — see package ifnet).
type Frame struct {
	// Payload is the UDP payload, i.e. the raw DHCP message bytes.
	Payload []byte

	SrcPort, DstPort uint16
}

// Parse recognises buf as a candidate DHCP datagram: IPv4 with protocol ==
// UDP and a destination port of 67 or 68. It tolerates a variable IHL to
// locate the UDP header. The magic-cookie check that completes the "is
// this really a DHCP message" test happens one layer up, in package
// dhcpmsg, once the options area is in view. It reports ok == false for
// anything else, including frames that are simply too short.
func Parse(buf []byte) (f Frame, ok bool) {
	if len(buf) < IPv4HeaderLen {
		return Frame{}, false
	}

	ihl := int(buf[0]&0x0f) * 4
	if ihl < IPv4HeaderLen || len(buf) < ihl+UDPHeaderLen {
		return Frame{}, false
	}

	if buf[9] != protocolUDP {
		return Frame{}, false
	}

	udp := buf[ihl:]
	srcPort := binary.BigEndian.Uint16(udp[0:2])
	dstPort := binary.BigEndian.Uint16(udp[2:4])
	if dstPort != ServerPort && dstPort != ClientPort {
		return Frame{}, false
	}

	return Frame{Payload: udp[UDPHeaderLen:], SrcPort: srcPort, DstPort: dstPort}, true
}
