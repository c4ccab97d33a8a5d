// Package txn drives the single request/response round-trip this tool ever
// performs: broadcast one DHCP message, then wait for a matching reply
// within a deadline. It is the only package that touches the interface
// adapter's sockets.
package txn

import (
	"net"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/golibs/netutil"

	"github.com/sgeto/dhcpstarv/internal/dhcpmsg"
	"github.com/sgeto/dhcpstarv/internal/wire"
)

// broadcastMAC is the link-layer broadcast address.
var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// broadcastIP is the IPv4 broadcast destination, the same netutil.IPv4bcast
// conn_linux.go uses.
var broadcastIP = [4]byte(netutil.IPv4bcast().To4())

// Sender is the subset of *ifnet.Adapter a transaction needs to send and
// receive raw frames.
type Sender interface {
	Send(frame []byte, dstMAC net.HardwareAddr) (int, error)
	Recv(buf []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Index() int
	HardwareAddr() net.HardwareAddr
}

// Engine is the sole user of an interface adapter's sockets.
type Engine struct {
	adapter Sender

	// Exclude is the server ID, in network order, that accepted replies
	// must not carry. A zero value excludes nothing.
	Exclude [4]byte
}

// New returns an Engine driving adapter.
func New(adapter Sender) *Engine {
	return &Engine{adapter: adapter}
}

// maxFrame is large enough for any frame this tool ever builds: the fixed
// DHCP message size plus IPv4/UDP/Ethernet headers and padding.
const maxFrame = wire.EthernetHeaderLen + wire.IPv4HeaderLen + wire.UDPHeaderLen + dhcpmsg.Size + 1

// SendAndWait wraps out into a frame addressed at dstMAC (or broadcast if
// nil) and always at the IPv4 broadcast address, sends it, and waits up to timeout for a BOOTREPLY whose xid matches and whose
// server-id option is present and not excluded. It returns the accepted
// reply, or an error on timeout or a send/receive failure.
func (e *Engine) SendAndWait(
	out *dhcpmsg.Message,
	xid uint32,
	dstMAC net.HardwareAddr,
	timeout time.Duration,
) (*dhcpmsg.Message, error) {
	if dstMAC == nil {
		dstMAC = broadcastMAC
	}

	var frameBuf [maxFrame]byte
	n, err := wire.Build(
		frameBuf[:],
		e.adapter.HardwareAddr(),
		dstMAC,
		[4]byte{},
		broadcastIP,
		wire.ClientPort,
		wire.ServerPort,
		out.Bytes()[:out.Size()],
	)
	if err != nil {
		return nil, err
	}

	if _, err = e.adapter.Send(frameBuf[:n], dstMAC); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)

	var recvBuf [maxFrame]byte
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errTimeout
		}

		if err = e.adapter.SetReadDeadline(deadline); err != nil {
			return nil, err
		}

		rn, rerr := e.adapter.Recv(recvBuf[:])
		if rerr != nil {
			if isTimeout(rerr) {
				return nil, errTimeout
			}
			return nil, rerr
		}

		reply, ok := accept(recvBuf[:rn], xid, e.Exclude)
		if !ok {
			continue
		}

		return reply, nil
	}
}

// errTimeout is returned when no matching reply arrives within the
// caller's deadline.
var errTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "txn: timed out waiting for a matching reply" }
func (timeoutError) Timeout() bool { return true }

func isTimeout(err error) bool {
	t, ok := err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}

// accept parses buf as a DHCP datagram and applies the acceptance rule:
// op == BOOTREPLY, xid matches, option 54 (server id) is present, and the
// server id is not the excluded one.
func accept(buf []byte, xid uint32, exclude [4]byte) (*dhcpmsg.Message, bool) {
	frame, ok := wire.Parse(buf)
	if !ok {
		return nil, false
	}

	msg, ok := dhcpmsg.Parse(frame.Payload)
	if !ok {
		return nil, false
	}

	if msg.Op() != dhcpmsg.OpBootReply {
		return nil, false
	}
	if msg.XID() != xid {
		return nil, false
	}

	serverID, ok := msg.GetOption(dhcpmsg.OptionServerID)
	if !ok {
		return nil, false
	}

	var excluded bool
	if exclude != ([4]byte{}) {
		excluded = [4]byte(serverID) == exclude
	}
	if excluded {
		log.Debug("dhcpstarv: txn: discarding reply from excluded server %v", net.IP(serverID))
		return nil, false
	}

	return msg, true
}
