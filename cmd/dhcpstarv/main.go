// Command dhcpstarv repeatedly acquires IPv4 leases from every reachable
// DHCP server on a local Ethernet segment, using a fresh synthetic hardware
// address each time, and renews them before their T1 timer expires.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/sgeto/dhcpstarv/internal/client"
	"github.com/sgeto/dhcpstarv/internal/ifnet"
	"github.com/sgeto/dhcpstarv/internal/lease"
	"github.com/sgeto/dhcpstarv/internal/starve"
	"github.com/sgeto/dhcpstarv/internal/txn"
)

const progName = "dhcpstarv"

// printNotice prints the startup copyright banner, shown in verbose or
// help mode.
func printNotice() {
	fmt.Print("Copyright (C) 2007 Dmitry Davletbaev\n" +
		"This program comes with ABSOLUTELY NO WARRANTY.\n" +
		"This is free software, and you are welcome to redistribute it under\n" +
		"certain conditions; see <http://www.gnu.org/licenses/> for details.\n\n")
}

func main() {
	opts := loadOptions()

	if opts.verbose {
		printNotice()
		log.SetLevel(log.DEBUG)
	} else {
		log.SetLevel(log.INFO)
	}

	adapter, err := ifnet.Open(opts.iface, opts.noPromisc)
	if err != nil {
		log.Error("dhcpstarv: %s", err)
		os.Exit(1)
	}

	var stopping atomic.Bool
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		s := <-sig
		log.Info("dhcpstarv: received %s, shutting down", s)
		stopping.Store(true)
	}()

	engine := txn.New(adapter)
	if opts.exclude != nil {
		copy(engine.Exclude[:], opts.exclude)
	}

	registry := lease.NewRegistry()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	starve.Run(engine, registry, client.DefaultPolicy, rng, stopping.Load)

	registry.Clear()
	if err = adapter.Close(); err != nil {
		log.Error("dhcpstarv: %s", err)
		os.Exit(1)
	}

	os.Exit(0)
}
