package dhcpmsg

import (
	"encoding/binary"
	"net"
)

// NewDiscover builds a DHCPDISCOVER message for the given transaction ID
// and client hardware address. If broadcast is true, the broadcast flag is
// set so replies come back broadcast rather than unicast to an address the
// client does not yet have.
func NewDiscover(xid uint32, mac net.HardwareAddr, broadcast bool) *Message {
	m := New()
	m.SetOp(OpBootRequest)
	m.SetHType(HTypeEthernet)
	m.SetXID(xid)
	m.SetCHAddr(mac)
	if broadcast {
		m.SetFlags(BroadcastFlag)
	}
	m.AddOption(OptionMessageType, []byte{MsgDiscover})
	return m
}

// RequestedLease carries the fields NewRequestSelecting copies out of an
// OFFER-derived lease into a REQUEST message.
type RequestedLease struct {
	ClientAddr uint32
	LeaseTime  uint32
	ServerID   uint32
}

// NewRequestSelecting builds the REQUEST that follows an accepted OFFER:
// built fresh (not on top of NewDiscover, which would leave a leading
// MSGTYPE=DISCOVER option ahead of this REQUEST's own), carrying the
// requested IP, lease time, and server ID the offer carried.
func NewRequestSelecting(xid uint32, mac net.HardwareAddr, broadcast bool, l RequestedLease) *Message {
	m := New()
	m.SetOp(OpBootRequest)
	m.SetHType(HTypeEthernet)
	m.SetXID(xid)
	m.SetCHAddr(mac)
	if broadcast {
		m.SetFlags(BroadcastFlag)
	}
	m.AddOption(OptionMessageType, []byte{MsgRequest})

	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], l.ClientAddr)
	m.AddOption(OptionRequestedIP, buf[:])

	binary.BigEndian.PutUint32(buf[:], l.LeaseTime)
	m.AddOption(OptionLeaseTime, buf[:])

	binary.BigEndian.PutUint32(buf[:], l.ServerID)
	m.AddOption(OptionServerID, buf[:])

	return m
}

// NewRequestRenewing builds the REQUEST this tool sends to renew an
// existing lease: ciaddr set to the lease's client address, and only the
// message-type option present, no requested-IP or server-ID. RFC 2131's
// RENEWING state unicasts this to the leasing server; this tool broadcasts
// it with the broadcast flag set instead, preserved deliberately.
func NewRequestRenewing(xid uint32, mac net.HardwareAddr, clientAddr uint32, broadcast bool) *Message {
	m := New()
	m.SetOp(OpBootRequest)
	m.SetHType(HTypeEthernet)
	m.SetXID(xid)
	m.SetCHAddr(mac)
	m.SetCIAddr(clientAddr)
	if broadcast {
		m.SetFlags(BroadcastFlag)
	}
	m.AddOption(OptionMessageType, []byte{MsgRequest})
	return m
}

// MessageType returns the decoded value of option 53, if present and
// valid.
func (m *Message) MessageType() (uint8, bool) {
	v, ok := m.GetOption(OptionMessageType)
	if !ok || len(v) != 1 {
		return 0, false
	}
	return v[0], true
}
