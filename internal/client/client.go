// Package client drives one lease through the DHCP client state machine:
// DISCOVER then REQUEST to acquire, or a single REQUEST to renew.
package client

import (
	"net"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/sgeto/dhcpstarv/internal/dhcpmsg"
	"github.com/sgeto/dhcpstarv/internal/lease"
)

// Sender is the subset of *txn.Engine the state machine needs.
type Sender interface {
	SendAndWait(out *dhcpmsg.Message, xid uint32, dstMAC net.HardwareAddr, timeout time.Duration) (*dhcpmsg.Message, error)
}

// Policy bounds how hard each phase retries before abandoning the lease.
type Policy struct {
	Timeout time.Duration
	Retries int
}

// DefaultPolicy matches the main loop's request defaults.
var DefaultPolicy = Policy{Timeout: 2 * time.Second, Retries: 2}

// roundTrip retries one send-and-wait round trip up to p.Retries times,
// returning the first accepted reply.
func roundTrip(s Sender, out *dhcpmsg.Message, xid uint32, p Policy) (*dhcpmsg.Message, bool) {
	for attempt := 0; attempt < p.Retries; attempt++ {
		reply, err := s.SendAndWait(out, xid, nil, p.Timeout)
		if err == nil {
			return reply, true
		}
		log.Debug("dhcpstarv: client: attempt %d/%d failed: %s", attempt+1, p.Retries, err)
	}
	return nil, false
}

// Acquire runs Phase A (DISCOVER) then Phase B (REQUEST selecting) for l.
// It reports true only if the acquisition completes with an ACK; any other
// outcome leaves l mid-acquisition (LastUpdated == 0) and reports false.
func Acquire(s Sender, l *lease.Lease, p Policy) bool {
	discover := dhcpmsg.NewDiscover(l.XID, l.MAC, true)
	offer, ok := roundTrip(s, discover, l.XID, p)
	if !ok {
		log.Debug("dhcpstarv: client: DISCOVER exhausted retries for %s", l.MAC)
		return false
	}

	l.Apply(offer)
	if l.ServerID == (lease.NetUint32{}) {
		// applyOffer aborted: a mandatory option was missing.
		return false
	}

	request := dhcpmsg.NewRequestSelecting(l.XID, l.MAC, true, dhcpmsg.RequestedLease{
		ClientAddr: l.ClientAddr.Host(),
		LeaseTime:  l.LeaseTime.Host(),
		ServerID:   l.ServerID.Host(),
	})
	reply, ok := roundTrip(s, request, l.XID, p)
	if !ok {
		log.Debug("dhcpstarv: client: REQUEST exhausted retries for %s", l.MAC)
		return false
	}

	return applyRequestReply(l, reply)
}

// Renew runs the single-phase renewal round trip for l, which must already
// have completed an acquisition. It reports true only on ACK.
func Renew(s Sender, l *lease.Lease, p Policy) bool {
	request := dhcpmsg.NewRequestRenewing(l.XID, l.MAC, l.ClientAddr.Host(), true)
	reply, ok := roundTrip(s, request, l.XID, p)
	if !ok {
		log.Debug("dhcpstarv: client: RENEW exhausted retries for %s", l.MAC)
		return false
	}

	return applyRequestReply(l, reply)
}

// applyRequestReply inspects a REQUEST reply's message type: ACK completes
// the lease, NAK abandons it, and anything else is logged and abandoned.
func applyRequestReply(l *lease.Lease, reply *dhcpmsg.Message) bool {
	msgType, ok := reply.MessageType()
	if !ok {
		log.Error("dhcpstarv: client: REQUEST reply has no message type for %s", l.MAC)
		return false
	}

	switch msgType {
	case dhcpmsg.MsgAck:
		l.Apply(reply)
		return l.LastUpdated != 0
	case dhcpmsg.MsgNak:
		log.Debug("dhcpstarv: client: REQUEST NAKed for %s", l.MAC)
		return false
	default:
		log.Error("dhcpstarv: client: unexpected message type %d in REQUEST reply for %s", msgType, l.MAC)
		return false
	}
}
