// Package starve implements the main loop: on every iteration, sweep the
// lease registry for renewals due, then synthesise a new hardware address
// and acquire a fresh lease under it.
package starve

import (
	"math/rand"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/sgeto/dhcpstarv/internal/client"
	"github.com/sgeto/dhcpstarv/internal/lease"
)

// MaxRenewLeases bounds how many renewals a single sweep performs, so one
// pass over a large registry cannot starve new acquisitions.
const MaxRenewLeases = 100

// vendorMACPrefix is the synthetic OUI every generated hardware address
// starts with.
var vendorMACPrefix = [3]byte{0x00, 0x16, 0x36}

// GenerateMAC returns a fresh synthetic hardware address: the fixed OUI
// prefix followed by three random bytes.
func GenerateMAC(rng *rand.Rand) net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	copy(mac, vendorMACPrefix[:])
	rng.Read(mac[3:])
	return mac
}

// sweepNow lets tests stub the wall clock; production code leaves it as
// time.Now.
var sweepNow = time.Now

// Sweep walks the registry in insertion order and renews every lease whose
// renewal window has opened, stopping once MaxRenewLeases renewals have
// succeeded in this sweep. Leases still mid-acquisition (LastUpdated == 0)
// and leases already past their renewal deadline are skipped.
func Sweep(s client.Sender, r *lease.Registry, p client.Policy) {
	now := sweepNow().Unix()
	renewed := 0

	for _, l := range r.All() {
		if renewed >= MaxRenewLeases {
			return
		}
		if l.LastUpdated == 0 {
			continue
		}

		renewalTime := int64(l.RenewalTime.Host())
		elapsed := now - l.LastUpdated

		if renewalTime < elapsed {
			// Past the renewal window's expiry; not worth renewing.
			continue
		}
		if elapsed <= renewalTime/3 {
			continue
		}

		if client.Renew(s, l, p) {
			renewed++
		}
	}
}

// Iterate runs one main-loop iteration: a renewal sweep followed by one
// new-MAC acquisition.
func Iterate(s client.Sender, r *lease.Registry, p client.Policy, rng *rand.Rand) {
	Sweep(s, r, p)

	mac := GenerateMAC(rng)
	l := r.Create(mac, rng.Uint32())

	if !client.Acquire(s, l, p) {
		log.Debug("dhcpstarv: starve: acquisition abandoned for %s", mac)
	}
}

// Run loops Iterate forever until stop reports true, checked between
// iterations so a signal-triggered shutdown takes effect promptly.
func Run(s client.Sender, r *lease.Registry, p client.Policy, rng *rand.Rand, stop func() bool) {
	for !stop() {
		Iterate(s, r, p, rng)
	}
}
