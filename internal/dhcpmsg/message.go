// Package dhcpmsg encodes and decodes RFC 2131 DHCP messages: the fixed
// 236-byte header and the 312-byte options area that follows it.
package dhcpmsg

import (
	"encoding/binary"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/iana"
)

const (
	// FixedHeaderSize is the length of the op..file portion of a DHCP
	// message, before the options area.
	FixedHeaderSize = 236

	// OptionsSize is the length of the options area, cookie included.
	OptionsSize = 312

	// Size is the total on-wire length of a DHCP message.
	Size = FixedHeaderSize + OptionsSize
)

var magicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

// BroadcastFlag is bit 15 of the flags field.
const BroadcastFlag = 0x8000

// Op codes, per RFC 2131.
const (
	OpBootRequest = uint8(dhcpv4.OpcodeBootRequest)
	OpBootReply   = uint8(dhcpv4.OpcodeBootReply)
)

// HTypeEthernet is the hardware-type byte for 6-byte Ethernet addresses.
const HTypeEthernet = uint8(iana.HWTypeEthernet)

// Option codes this package knows about, from the table in RFC 1533.
const (
	OptionSubnetMask    = 1
	OptionRouter        = 3
	OptionDNS           = 6
	OptionDomainName    = 15
	OptionBroadcastAddr = 28
	OptionRequestedIP   = 50
	OptionLeaseTime     = 51
	OptionMessageType   = 53
	OptionServerID      = 54
	OptionRenewalTime   = 58
	OptionRebindingTime = 59
	optionEnd           = 0xff
	optionPad           = 0x00
)

// Message types carried in option 53.
const (
	MsgDiscover = 1
	MsgOffer    = 2
	MsgRequest  = 3
	MsgDecline  = 4
	MsgAck      = 5
	MsgNak      = 6
	MsgRelease  = 7
	MsgInform   = 8
)

// Message is a DHCP packet held as a fixed-size byte buffer, laid out
// exactly as it appears on the wire.
type Message struct {
	buf [Size]byte
}

// New returns an all-zero message with the magic cookie already in place.
func New() *Message {
	m := &Message{}
	copy(m.buf[FixedHeaderSize:FixedHeaderSize+4], magicCookie[:])
	m.buf[FixedHeaderSize+4] = optionEnd
	return m
}

// Parse interprets buf as a Message. Wire DHCP datagrams are often shorter
// than the full fixed-size layout (senders stop once the options they set
// are written); the remainder of the options area is treated as if it were
// zero-filled PAD bytes, matching a read into a pre-zeroed fixed buffer.
// buf must not be longer than Size, and must carry the magic cookie at the
// start of its options area.
func Parse(buf []byte) (*Message, bool) {
	if len(buf) > Size || len(buf) < FixedHeaderSize+4 {
		return nil, false
	}
	var cookie [4]byte
	copy(cookie[:], buf[FixedHeaderSize:FixedHeaderSize+4])
	if cookie != magicCookie {
		return nil, false
	}
	m := &Message{}
	copy(m.buf[:], buf)
	return m, true
}

// Bytes returns the message's full on-wire representation.
func (m *Message) Bytes() []byte { return m.buf[:] }

func (m *Message) Op() uint8      { return m.buf[0] }
func (m *Message) SetOp(v uint8)  { m.buf[0] = v }
func (m *Message) HType() uint8   { return m.buf[1] }
func (m *Message) SetHType(v uint8) { m.buf[1] = v }
func (m *Message) HLen() uint8   { return m.buf[2] }
func (m *Message) SetHLen(v uint8) { m.buf[2] = v }

func (m *Message) XID() uint32 { return binary.BigEndian.Uint32(m.buf[4:8]) }
func (m *Message) SetXID(v uint32) { binary.BigEndian.PutUint32(m.buf[4:8], v) }

func (m *Message) Flags() uint16     { return binary.BigEndian.Uint16(m.buf[10:12]) }
func (m *Message) SetFlags(v uint16) { binary.BigEndian.PutUint16(m.buf[10:12], v) }

func (m *Message) CIAddr() uint32     { return binary.BigEndian.Uint32(m.buf[12:16]) }
func (m *Message) SetCIAddr(v uint32) { binary.BigEndian.PutUint32(m.buf[12:16], v) }
func (m *Message) YIAddr() uint32     { return binary.BigEndian.Uint32(m.buf[16:20]) }
func (m *Message) SIAddr() uint32     { return binary.BigEndian.Uint32(m.buf[20:24]) }
func (m *Message) GIAddr() uint32     { return binary.BigEndian.Uint32(m.buf[24:28]) }

// CHAddr returns the first hlen bytes of the client hardware address field.
func (m *Message) CHAddr() net.HardwareAddr {
	return net.HardwareAddr(m.buf[28 : 28+m.HLen()])
}

// SetCHAddr copies mac into the client hardware address field and sets hlen.
func (m *Message) SetCHAddr(mac net.HardwareAddr) {
	n := copy(m.buf[28:28+16], mac)
	m.buf[2] = uint8(n)
}

// optionsArea returns the mutable options area, cookie included.
func (m *Message) optionsArea() []byte {
	return m.buf[FixedHeaderSize : FixedHeaderSize+OptionsSize]
}

// freeSlot walks the options area from offset 4 (past the cookie) and
// returns the offset of the first PAD or END byte, the marker used to
// find room for a new option or to mark the end of the stream.
func freeSlot(area []byte) int {
	i := 4
	for i < len(area) {
		b := area[i]
		if b == optionPad || b == optionEnd {
			return i
		}
		i++
		i += int(area[i]) + 1
	}
	return i
}

// AddOption appends a single option, writing code, the one-byte length of
// value, and value itself, followed by a new END marker. It reports false
// if there is not enough room in the options area.
func (m *Message) AddOption(code uint8, value []byte) bool {
	area := m.optionsArea()
	i := freeSlot(area)

	need := 2 + len(value) + 1 // code + len + value + trailing END
	if i+need > len(area) {
		return false
	}

	area[i] = code
	area[i+1] = uint8(len(value))
	copy(area[i+2:], value)
	area[i+2+len(value)] = optionEnd

	return true
}

// Size returns the packet size spec'd as fixed_header_size + options_offset
// + 1, where options_offset is the offset of the END/PAD marker found by
// the same free-slot walk AddOption uses.
func (m *Message) Size() int {
	area := m.optionsArea()
	return FixedHeaderSize + freeSlot(area) + 1
}

// Option is one decoded (code, length, value) triple from the options
// area. Value is truncated to the caller-supplied capacity even though
// Length reports the option's true on-wire length.
type Option struct {
	Code   uint8
	Length int
	Value  []byte
}

// optionKind classifies a byte at the current walk position.
type optionKind int

const (
	kindOption optionKind = iota
	kindPad
	kindEnd
)

func classify(b byte) optionKind {
	switch b {
	case optionPad:
		return kindPad
	case optionEnd:
		return kindEnd
	default:
		return kindOption
	}
}

// optionIter walks the options area, skipping the magic cookie on its
// first call and yielding (code, length, value) triples until END, a PAD
// byte, or the end of the area is reached.
type optionIter struct {
	area []byte
	pos  int
}

func (m *Message) iter() *optionIter {
	return &optionIter{area: m.optionsArea(), pos: 4}
}

// next advances the walk and reports the next option, or ok=false once
// END, PAD, or the area boundary is reached.
func (it *optionIter) next() (code uint8, value []byte, ok bool) {
	if it.pos >= len(it.area) {
		return 0, nil, false
	}
	switch classify(it.area[it.pos]) {
	case kindEnd, kindPad:
		return 0, nil, false
	}

	code = it.area[it.pos]
	length := int(it.area[it.pos+1])
	start := it.pos + 2
	end := start + length
	if end > len(it.area) {
		return 0, nil, false
	}

	it.pos = end
	return code, it.area[start:end], true
}

// NextOption is the stateful iterator used by callers walking a message's
// options one at a time. The length of the caller's out buffer bounds how
// many bytes of the option's value are copied into it; the true length is
// always reported regardless, per the silent-truncation behavior this
// format preserves.
type NextOption struct {
	it *optionIter
}

// Options returns a fresh iterator positioned at the first option.
func (m *Message) Options() *NextOption {
	return &NextOption{it: m.iter()}
}

// Next copies up to len(out) bytes of the next option's value into out and
// reports its code and true length. ok is false once the options stream is
// exhausted.
func (n *NextOption) Next(out []byte) (opt Option, ok bool) {
	code, value, ok := n.it.next()
	if !ok {
		return Option{}, false
	}

	copied := copy(out, value)
	return Option{Code: code, Length: len(value), Value: out[:copied]}, true
}

// sizeRule reports whether an option of the given declared length is valid
// for code, per the RFC 1533 whitelist. Unknown codes are always invalid:
// a deliberate conservative stance carried over unchanged.
func sizeRule(code uint8, length int) bool {
	switch code {
	case OptionSubnetMask:
		return length == 4
	case OptionRouter:
		return length >= 4 && length%4 == 0
	case OptionDNS:
		return length >= 4 && length%4 == 0
	case OptionDomainName:
		return length >= 1
	case OptionBroadcastAddr:
		return length == 4
	case OptionRequestedIP:
		return length == 4
	case OptionLeaseTime:
		return length == 4
	case OptionMessageType:
		return length == 1
	case OptionServerID:
		return length == 4
	case OptionRenewalTime:
		return length == 4
	case OptionRebindingTime:
		return length == 4
	default:
		return false
	}
}

// GetOption scans the options area for code and returns its value if found
// and its declared length passes sizeRule. A recognised code with a
// disallowed length, or an altogether unrecognised code, is reported as
// not found.
func (m *Message) GetOption(code uint8) (value []byte, ok bool) {
	it := m.iter()
	for {
		c, v, ok := it.next()
		if !ok {
			return nil, false
		}
		if c != code {
			continue
		}
		if !sizeRule(c, len(v)) {
			return nil, false
		}
		return v, true
	}
}
