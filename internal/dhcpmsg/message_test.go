package dhcpmsg

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscover_encoding(t *testing.T) {
	mac := net.HardwareAddr{0x00, 0x16, 0x36, 0x01, 0x02, 0x03}
	m := NewDiscover(0xDEADBEEF, mac, true)

	assert.Equal(t, OpBootRequest, m.Op())
	assert.Equal(t, uint8(1), m.HType())
	assert.Equal(t, uint8(6), m.HLen())
	assert.Equal(t, uint32(0xDEADBEEF), m.XID())
	assert.Equal(t, uint16(BroadcastFlag), m.Flags())
	assert.Equal(t, mac, m.CHAddr())

	area := m.optionsArea()
	assert.Equal(t, []byte{0x63, 0x82, 0x53, 0x63, 0x35, 0x01, 0x01, 0xff}, area[:8])

	// fixed_header_size + options_offset + 1, where options_offset (7)
	// is the offset of the END byte found by the free-slot walk.
	assert.Equal(t, FixedHeaderSize+7+1, m.Size())
}

func TestAddOption_roundTrips(t *testing.T) {
	m := New()
	require.True(t, m.AddOption(OptionMessageType, []byte{MsgOffer}))
	require.True(t, m.AddOption(OptionServerID, []byte{192, 168, 1, 1}))
	require.True(t, m.AddOption(OptionDomainName, []byte("example.test")))

	type want struct {
		code  uint8
		value []byte
	}
	wants := []want{
		{OptionMessageType, []byte{MsgOffer}},
		{OptionServerID, []byte{192, 168, 1, 1}},
		{OptionDomainName, []byte("example.test")},
	}

	it := m.Options()
	var buf [64]byte
	for _, w := range wants {
		opt, ok := it.Next(buf[:])
		require.True(t, ok)
		assert.Equal(t, w.code, opt.Code)
		assert.Equal(t, len(w.value), opt.Length)
		assert.Equal(t, w.value, opt.Value)
	}
	_, ok := it.Next(buf[:])
	assert.False(t, ok)
}

func TestNextOption_truncatesToCallerCapacity(t *testing.T) {
	m := New()
	require.True(t, m.AddOption(OptionDomainName, []byte("example.test")))

	it := m.Options()
	var small [4]byte
	opt, ok := it.Next(small[:])
	require.True(t, ok)

	assert.Equal(t, len("example.test"), opt.Length)
	assert.Equal(t, []byte("exam"), opt.Value)
}

func TestAddOption_failsWhenFull(t *testing.T) {
	m := New()
	big := make([]byte, 255)
	for i := 0; i < OptionsSize/256+2; i++ {
		if !m.AddOption(OptionDomainName, big) {
			return
		}
	}
	t.Fatal("expected AddOption to eventually fail once the options area is full")
}

func TestGetOption_rejectsUnknownCode(t *testing.T) {
	m := New()
	require.True(t, m.AddOption(222, []byte{1, 2, 3, 4}))

	_, ok := m.GetOption(222)
	assert.False(t, ok, "unknown option codes are conservatively treated as invalid")
}

func TestGetOption_rejectsWrongLength(t *testing.T) {
	m := New()
	require.True(t, m.AddOption(OptionSubnetMask, []byte{255, 255, 255}))

	_, ok := m.GetOption(OptionSubnetMask)
	assert.False(t, ok)
}

func TestRequestSelecting_carriesLeaseFields(t *testing.T) {
	mac := net.HardwareAddr{0x00, 0x16, 0x36, 0x01, 0x02, 0x03}
	m := NewRequestSelecting(1, mac, true, RequestedLease{
		ClientAddr: 0xC0A80132,
		LeaseTime:  3600,
		ServerID:   0xC0A80101,
	})

	v, ok := m.GetOption(OptionRequestedIP)
	require.True(t, ok)
	assert.Equal(t, []byte{0xC0, 0xA8, 0x01, 0x32}, v)

	v, ok = m.GetOption(OptionServerID)
	require.True(t, ok)
	assert.Equal(t, []byte{0xC0, 0xA8, 0x01, 0x01}, v)

	mt, ok := m.MessageType()
	require.True(t, ok)
	assert.Equal(t, uint8(MsgRequest), mt)
}

func TestRequestRenewing_setsCIAddrOnly(t *testing.T) {
	mac := net.HardwareAddr{0x00, 0x16, 0x36, 0x01, 0x02, 0x03}
	m := NewRequestRenewing(1, mac, 0xC0A80132, true)

	assert.Equal(t, uint32(0xC0A80132), m.CIAddr())
	_, ok := m.GetOption(OptionServerID)
	assert.False(t, ok)
	_, ok = m.GetOption(OptionRequestedIP)
	assert.False(t, ok)
}
