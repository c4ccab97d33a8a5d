package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgeto/dhcpstarv/internal/dhcpmsg"
	"github.com/sgeto/dhcpstarv/internal/lease"
)

// scriptedSender returns one canned reply (or an error) per call, in order,
// regardless of what was sent.
type scriptedSender struct {
	replies []func(xid uint32) (*dhcpmsg.Message, error)
	calls   int
}

func (s *scriptedSender) SendAndWait(out *dhcpmsg.Message, xid uint32, dstMAC net.HardwareAddr, timeout time.Duration) (*dhcpmsg.Message, error) {
	f := s.replies[s.calls]
	s.calls++
	return f(xid)
}

func offerReply(serverID [4]byte) func(xid uint32) (*dhcpmsg.Message, error) {
	return func(xid uint32) (*dhcpmsg.Message, error) {
		m := dhcpmsg.New()
		m.SetOp(dhcpmsg.OpBootReply)
		m.SetXID(xid)
		m.AddOption(dhcpmsg.OptionMessageType, []byte{dhcpmsg.MsgOffer})
		m.AddOption(dhcpmsg.OptionServerID, serverID[:])
		m.AddOption(dhcpmsg.OptionLeaseTime, []byte{0, 0, 0x0E, 0x10})
		m.AddOption(dhcpmsg.OptionSubnetMask, []byte{255, 255, 255, 0})
		m.AddOption(dhcpmsg.OptionRenewalTime, []byte{0, 0, 0x07, 0x08})
		m.AddOption(dhcpmsg.OptionRebindingTime, []byte{0, 0, 0x0C, 0x4E})
		return m, nil
	}
}

func ackReply(serverID [4]byte) func(xid uint32) (*dhcpmsg.Message, error) {
	return func(xid uint32) (*dhcpmsg.Message, error) {
		m := dhcpmsg.New()
		m.SetOp(dhcpmsg.OpBootReply)
		m.SetXID(xid)
		m.AddOption(dhcpmsg.OptionMessageType, []byte{dhcpmsg.MsgAck})
		m.AddOption(dhcpmsg.OptionServerID, serverID[:])
		return m, nil
	}
}

func nakReply() func(xid uint32) (*dhcpmsg.Message, error) {
	return func(xid uint32) (*dhcpmsg.Message, error) {
		m := dhcpmsg.New()
		m.SetOp(dhcpmsg.OpBootReply)
		m.SetXID(xid)
		m.AddOption(dhcpmsg.OptionMessageType, []byte{dhcpmsg.MsgNak})
		return m, nil
	}
}

func failOnce() func(xid uint32) (*dhcpmsg.Message, error) {
	return func(xid uint32) (*dhcpmsg.Message, error) {
		return nil, errors.New("no reply")
	}
}

var fastPolicy = Policy{Timeout: time.Millisecond, Retries: 2}

func newLease() *lease.Lease {
	r := lease.NewRegistry()
	return r.Create(net.HardwareAddr{0, 0x16, 0x36, 1, 2, 3}, 42)
}

func TestAcquire_succeedsOnAck(t *testing.T) {
	l := newLease()
	s := &scriptedSender{replies: []func(uint32) (*dhcpmsg.Message, error){
		offerReply([4]byte{192, 168, 1, 1}),
		ackReply([4]byte{192, 168, 1, 1}),
	}}

	ok := Acquire(s, l, fastPolicy)
	require.True(t, ok)
	assert.NotZero(t, l.LastUpdated)
}

func TestAcquire_nakAbandons(t *testing.T) {
	l := newLease()
	s := &scriptedSender{replies: []func(uint32) (*dhcpmsg.Message, error){
		offerReply([4]byte{192, 168, 1, 1}),
		nakReply(),
	}}

	ok := Acquire(s, l, fastPolicy)
	assert.False(t, ok)
	assert.Zero(t, l.LastUpdated)
}

func TestAcquire_discoverExhaustionAbandons(t *testing.T) {
	l := newLease()
	s := &scriptedSender{replies: []func(uint32) (*dhcpmsg.Message, error){
		failOnce(),
		failOnce(),
	}}

	ok := Acquire(s, l, fastPolicy)
	assert.False(t, ok)
	assert.Zero(t, l.LastUpdated)
}

func TestRenew_succeedsOnAck(t *testing.T) {
	l := newLease()
	l.ClientAddr = lease.NetUint32{192, 168, 1, 50}
	l.LastUpdated = 1

	s := &scriptedSender{replies: []func(uint32) (*dhcpmsg.Message, error){
		ackReply([4]byte{192, 168, 1, 1}),
	}}

	ok := Renew(s, l, fastPolicy)
	assert.True(t, ok)
}

func TestRenew_nakFails(t *testing.T) {
	l := newLease()
	l.ClientAddr = lease.NetUint32{192, 168, 1, 50}
	l.LastUpdated = 1

	s := &scriptedSender{replies: []func(uint32) (*dhcpmsg.Message, error){
		nakReply(),
	}}

	ok := Renew(s, l, fastPolicy)
	assert.False(t, ok)
}
