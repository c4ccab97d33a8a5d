// Package lease owns the pool of active DHCP leases this tool has
// acquired: an append-only, insertion-ordered registry, and the rules for
// merging a decoded DHCP reply into a lease's fields.
package lease

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/sgeto/dhcpstarv/internal/dhcpmsg"
)

// MaxDNS is the number of DNS server slots a lease records.
const MaxDNS = 10

// MaxDomainName is the largest domain name this tool records, in bytes.
const MaxDomainName = 128

// NetUint32 is a 32-bit field stored exactly as it arrived on the wire, in
// network byte order. Call Host to interpret it as a host-order integer.
type NetUint32 [4]byte

// Host returns v interpreted as a big-endian integer.
func (v NetUint32) Host() uint32 { return binary.BigEndian.Uint32(v[:]) }

// setFrom copies a 4-byte big-endian field from an option value into v.
func (v *NetUint32) setFrom(b []byte) {
	copy(v[:], b)
}

// Lease is one synthetic client's acquired or in-progress DHCP lease.
//
// last_updated is zero until the first successful ACK; the zero value is
// the sentinel the renewal sweep uses to skip leases still mid-acquisition.
type Lease struct {
	XID uint32
	MAC net.HardwareAddr

	ClientAddr NetUint32
	ServerID   NetUint32
	Netmask    NetUint32
	Router     NetUint32
	DNS        []NetUint32

	LeaseTime      NetUint32
	RenewalTime    NetUint32
	RebindingTime  NetUint32
	DomainName     string

	// LastUpdated is wall-clock seconds, host order, of the most recent
	// successful ACK. Zero means acquisition has not completed.
	LastUpdated int64
}

// Registry is an ordered, append-only collection of leases: the sole owner
// of every lease for the life of the process.
type Registry struct {
	leases []*Lease
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Create allocates a zero-initialised lease carrying the given xid, appends
// it, and returns a reference. Create does not generate the xid itself; it
// stores whatever value the caller passes. The caller retains the reference for
// the rest of the lease's life; the registry never relocates or frees it.
func (r *Registry) Create(mac net.HardwareAddr, xid uint32) *Lease {
	l := &Lease{
		XID: xid,
		MAC: append(net.HardwareAddr(nil), mac...),
	}
	r.leases = append(r.leases, l)
	return l
}

// First returns the oldest lease in the registry, or nil if it is empty.
func (r *Registry) First() *Lease {
	if len(r.leases) == 0 {
		return nil
	}
	return r.leases[0]
}

// All returns every lease in insertion order. The slice is owned by the
// registry; callers must not retain it across a Create call.
func (r *Registry) All() []*Lease {
	return r.leases
}

// Clear releases every lease. Only the shutdown path calls this.
func (r *Registry) Clear() {
	r.leases = nil
}

// Apply merges fields from a decoded DHCP reply into l, following the
// message type found in option 53. DISCOVER, REQUEST, DECLINE, RELEASE,
// and NAK never mutate the lease: acceptance and abandonment are the
// caller's decision, not the registry's.
func (l *Lease) Apply(msg *dhcpmsg.Message) {
	msgType, ok := msg.MessageType()
	if !ok {
		log.Error("dhcpstarv: lease: no DHCP message type in reply")
		return
	}

	switch msgType {
	case dhcpmsg.MsgOffer:
		l.applyOffer(msg)
	case dhcpmsg.MsgAck:
		l.applyAck(msg)
	case dhcpmsg.MsgDiscover, dhcpmsg.MsgRequest, dhcpmsg.MsgDecline,
		dhcpmsg.MsgNak, dhcpmsg.MsgRelease:
		// No mutation; the state machine decides what these mean.
	default:
		log.Error("dhcpstarv: lease: unknown DHCP message type %d", msgType)
	}
}

func (l *Lease) applyOffer(msg *dhcpmsg.Message) {
	var yiaddr NetUint32
	binary.BigEndian.PutUint32(yiaddr[:], msg.YIAddr())
	l.ClientAddr = yiaddr

	serverID, ok := msg.GetOption(dhcpmsg.OptionServerID)
	if !ok {
		log.Error("dhcpstarv: lease: no server id option in DHCPOFFER")
		return
	}
	leaseTime, ok := msg.GetOption(dhcpmsg.OptionLeaseTime)
	if !ok {
		log.Error("dhcpstarv: lease: no lease time option in DHCPOFFER")
		return
	}
	netmask, ok := msg.GetOption(dhcpmsg.OptionSubnetMask)
	if !ok {
		log.Error("dhcpstarv: lease: no network mask option in DHCPOFFER")
		return
	}
	renewalTime, ok := msg.GetOption(dhcpmsg.OptionRenewalTime)
	if !ok {
		log.Error("dhcpstarv: lease: no renewal time option in DHCPOFFER")
		return
	}
	rebindingTime, ok := msg.GetOption(dhcpmsg.OptionRebindingTime)
	if !ok {
		log.Error("dhcpstarv: lease: no rebinding time option in DHCPOFFER")
		return
	}

	l.ServerID.setFrom(serverID)
	l.LeaseTime.setFrom(leaseTime)
	l.Netmask.setFrom(netmask)
	l.RenewalTime.setFrom(renewalTime)
	l.RebindingTime.setFrom(rebindingTime)

	if domain, ok := msg.GetOption(dhcpmsg.OptionDomainName); ok {
		n := len(domain)
		if n > MaxDomainName {
			n = MaxDomainName
		}
		l.DomainName = string(domain[:n])
	}
	if router, ok := msg.GetOption(dhcpmsg.OptionRouter); ok {
		l.Router.setFrom(router)
	}
	if dns, ok := msg.GetOption(dhcpmsg.OptionDNS); ok {
		l.DNS = decodeAddrList(dns, MaxDNS)
	}
}

func (l *Lease) applyAck(msg *dhcpmsg.Message) {
	serverID, ok := msg.GetOption(dhcpmsg.OptionServerID)
	if !ok {
		log.Error("dhcpstarv: lease: no server id option in DHCPACK")
		return
	}
	l.ServerID.setFrom(serverID)

	if v, ok := msg.GetOption(dhcpmsg.OptionLeaseTime); ok {
		l.LeaseTime.setFrom(v)
	}
	if v, ok := msg.GetOption(dhcpmsg.OptionRenewalTime); ok {
		l.RenewalTime.setFrom(v)
	}
	if v, ok := msg.GetOption(dhcpmsg.OptionRebindingTime); ok {
		l.RebindingTime.setFrom(v)
	}
	if v, ok := msg.GetOption(dhcpmsg.OptionSubnetMask); ok {
		l.Netmask.setFrom(v)
	}
	if v, ok := msg.GetOption(dhcpmsg.OptionRouter); ok {
		l.Router.setFrom(v)
	}
	if v, ok := msg.GetOption(dhcpmsg.OptionDNS); ok {
		l.DNS = decodeAddrList(v, MaxDNS)
	}
	if v, ok := msg.GetOption(dhcpmsg.OptionDomainName); ok {
		n := len(v)
		if n > MaxDomainName {
			n = MaxDomainName
		}
		l.DomainName = string(v[:n])
	}

	l.LastUpdated = time.Now().Unix()
}

// decodeAddrList splits a multiple-of-4 option value into up to max
// NetUint32 addresses.
func decodeAddrList(v []byte, max int) []NetUint32 {
	n := len(v) / 4
	if n > max {
		n = max
	}
	out := make([]NetUint32, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], v[i*4:i*4+4])
	}
	return out
}
