package main

import (
	"fmt"
	"net"
	"os"

	"github.com/AdguardTeam/golibs/log"
)

// options is the resolved, read-only-after-startup run configuration.
type options struct {
	iface      string
	exclude    net.IP
	noPromisc  bool
	verbose    bool
	help       bool
}

// loadOptions reads command line arguments and builds an options value, in
// the style of a hand-rolled long/short flag table walked against os.Args.
func loadOptions() options {
	o := options{}

	var printHelp func()
	var opts = []struct {
		longName          string
		shortName         string
		description       string
		callbackWithValue func(value string)
		callbackNoValue   func()
	}{
		{"iface", "i", "interface name", func(value string) { o.iface = value }, nil},
		{"exclude", "e", "ignore replies from server with this address", func(value string) {
			ip := net.ParseIP(value).To4()
			if ip == nil {
				log.Error("dhcpstarv: invalid --exclude address %q\n", value)
				os.Exit(64)
			}
			o.exclude = ip
		}, nil},
		{"no-promisc", "p", "do not set network interface to promiscuous mode", nil, func() { o.noPromisc = true }},
		{"verbose", "v", "verbose output", nil, func() { o.verbose = true }},
		{"help", "h", "print this help", nil, func() { o.help = true }},
	}
	printHelp = func() {
		fmt.Printf("%s - DHCP starvation utility.\n\n", progName)
		fmt.Printf("Usage:\n\n")
		fmt.Printf("\t%s -h\n\n", progName)
		fmt.Printf("\t%s [-epv] -i IFNAME\n\n", progName)
		fmt.Printf("Options:\n")
		for _, opt := range opts {
			if opt.shortName != "" {
				fmt.Printf("  -%s, %-16s %s\n", opt.shortName, "--"+opt.longName, opt.description)
			} else {
				fmt.Printf("  %-20s %s\n", "--"+opt.longName, opt.description)
			}
		}
	}

	for i := 1; i < len(os.Args); i++ {
		v := os.Args[i]
		knownParam := false
		for _, opt := range opts {
			if v == "--"+opt.longName || (opt.shortName != "" && v == "-"+opt.shortName) {
				if opt.callbackWithValue != nil {
					if i+1 >= len(os.Args) {
						log.Error("dhcpstarv: %s requires an argument\n", v)
						os.Exit(64)
					}
					i++
					opt.callbackWithValue(os.Args[i])
				} else if opt.callbackNoValue != nil {
					opt.callbackNoValue()
				}
				knownParam = true
				break
			}
		}
		if !knownParam {
			log.Error("dhcpstarv: unknown option %v\n", v)
			printHelp()
			os.Exit(64)
		}
	}

	if o.help {
		printNotice()
		printHelp()
		os.Exit(0)
	}

	if o.iface == "" {
		log.Error("dhcpstarv: -i/--iface is required\n")
		printHelp()
		os.Exit(64)
	}

	return o
}
