// Package ifnet opens the pair of Linux packet sockets this tool sends and
// receives DHCP traffic on, discovers the chosen interface's index and
// hardware address, and can turn promiscuous mode on (and off again on
// Close). It does not read the interface's existing promiscuous-mode state.
package ifnet

import (
	"fmt"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"
)

// Adapter owns the send and receive sockets for one network interface, and
// the promiscuous-mode flag this tool may have set on it.
type Adapter struct {
	iface *net.Interface

	// sendConn is AF_PACKET/SOCK_RAW: it carries fully-formed Ethernet
	// frames built by package wire.
	sendConn *packet.Conn

	// recvConn is AF_PACKET/SOCK_DGRAM: the kernel strips the Ethernet
	// header, handing up IPv4-and-above payloads.
	recvConn *packet.Conn

	// promiscSet records whether this process turned promiscuous mode
	// on, so Close can restore it and only it.
	promiscSet bool
}

// Open creates both packet sockets on ifaceName and, unless noPromisc is
// set, puts the interface into promiscuous mode.
func Open(ifaceName string, noPromisc bool) (a *Adapter, err error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ifnet: looking up interface %q: %w", ifaceName, err)
	}

	sendConn, err := packet.Listen(iface, packet.Raw, unix.ETH_P_ALL, nil)
	if err != nil {
		return nil, fmt.Errorf("ifnet: opening send socket on %q: %w", ifaceName, err)
	}

	recvConn, err := packet.Listen(iface, packet.Datagram, unix.ETH_P_ALL, nil)
	if err != nil {
		_ = sendConn.Close()
		return nil, fmt.Errorf("ifnet: opening receive socket on %q: %w", ifaceName, err)
	}

	a = &Adapter{
		iface:    iface,
		sendConn: sendConn,
		recvConn: recvConn,
	}

	if !noPromisc {
		if err = sendConn.SetPromiscuous(true); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("ifnet: setting promiscuous mode on %q: %w", ifaceName, err)
		}
		a.promiscSet = true
	}

	return a, nil
}

// Index returns the interface's index, used to target sendto at it.
func (a *Adapter) Index() int { return a.iface.Index }

// HardwareAddr returns the interface's own MAC address.
func (a *Adapter) HardwareAddr() net.HardwareAddr { return a.iface.HardwareAddr }

// Send writes a fully-formed Ethernet frame built by package wire to the
// send socket, addressed at dstMAC (or broadcast).
func (a *Adapter) Send(frame []byte, dstMAC net.HardwareAddr) (int, error) {
	return a.sendConn.WriteTo(frame, &packet.Addr{HardwareAddr: dstMAC})
}

// Recv reads one datagram (IPv4 and up; Ethernet already stripped) from the
// receive socket into buf.
func (a *Adapter) Recv(buf []byte) (int, error) {
	n, _, err := a.recvConn.ReadFrom(buf)
	return n, err
}

// SetReadDeadline bounds the next Recv call.
func (a *Adapter) SetReadDeadline(t time.Time) error {
	return a.recvConn.SetReadDeadline(t)
}

// Close restores promiscuous mode if this process set it, then closes both
// sockets, combining any failures from either into one error.
func (a *Adapter) Close() error {
	var promiscErr error
	if a.promiscSet {
		promiscErr = a.sendConn.SetPromiscuous(false)
	}

	sendErr := a.sendConn.Close()
	recvErr := a.recvConn.Close()

	errs := make([]error, 0, 3)
	for _, e := range []error{promiscErr, sendErr, recvErr} {
		if e != nil {
			errs = append(errs, e)
		}
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("ifnet: closing adapter: %w", errs[0])
	default:
		return errors.List("ifnet: closing adapter", errs...)
	}
}
