// Package wire hand-assembles and parses the Ethernet/IPv4/UDP frames that
// carry DHCP traffic on the packet sockets opened by package ifnet.
//
// Nothing outside this package and package dhcpmsg touches wire bytes
// directly.
package wire

import "encoding/binary"

// sum16 adds up buf as a sequence of big-endian 16-bit words, padding a
// trailing odd byte with zero. It returns the raw accumulator before the
// end-around-carry fold.
func sum16(buf []byte) uint32 {
	var sum uint32

	n := len(buf)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(buf[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(buf[n-1]) << 8
	}

	return sum
}

// foldChecksum folds sum exactly once (sum += sum>>16) and returns its one's
// complement. This matches the single-fold algorithm of the original C
// implementation rather than looping until the carry vanishes. When the
// folded value still exceeds 0xFFFF, the carry left in bit 16 is dropped by
// the conversion to uint16, so the result is not a general-purpose
// one's-complement sum.
func foldChecksum(sum uint32) uint16 {
	sum += sum >> 16
	return ^uint16(sum)
}

// ipv4Checksum computes the standard IPv4 header checksum over hdr, which
// must have its checksum field already zeroed.
func ipv4Checksum(hdr []byte) uint16 {
	return foldChecksum(sum16(hdr))
}

// udpChecksum computes the UDP checksum over the pseudo-header followed by
// the UDP header and payload. If payload has odd length, a single zero byte
// is summed after it for checksum purposes only; it is never reflected in
// udplen passed for the pseudo-header length field. A result of 0x0000 is
// returned as-is: the all-zero-means-omitted convention used by real UDP
// senders does not apply here.
func udpChecksum(srcIP, dstIP [4]byte, udplen uint16, udpHeaderAndPayload []byte) uint16 {
	var pseudo [12]byte
	copy(pseudo[0:4], srcIP[:])
	copy(pseudo[4:8], dstIP[:])
	pseudo[8] = 0
	pseudo[9] = protocolUDP
	binary.BigEndian.PutUint16(pseudo[10:12], udplen)

	sum := sum16(pseudo[:])
	sum += sum16(udpHeaderAndPayload)

	return foldChecksum(sum)
}
