package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/transport"
)

var (
	discoverUSB    bool
	discoverMDNS   bool
	discoverSerial bool
	discoverWindow time.Duration
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find instruments attached to this host or on the network",
	Long: `Scan USB for USBTMC devices, list serial ports and browse mDNS for LXI
and SCPI services. Every candidate is printed with the link and address to
pass to run. Sources default to the config's [discover] section.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().BoolVar(&discoverUSB, "usb", true, "Scan USB for USBTMC devices")
	discoverCmd.Flags().BoolVar(&discoverMDNS, "mdns", true, "Browse mDNS for network instruments")
	discoverCmd.Flags().BoolVar(&discoverSerial, "serial", true, "List serial ports")
	discoverCmd.Flags().DurationVar(&discoverWindow, "window", 2*time.Second, "How long to browse mDNS")
	discoverCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: text, json or yaml")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	format, err := resultFormat()
	if err != nil {
		return err
	}

	opts := transport.DiscoverOptions{
		USB:        cfg.Discover.USB,
		MDNS:       cfg.Discover.MDNS,
		Serial:     cfg.Discover.Serial,
		MDNSWindow: cfg.Discover.MDNSWindow.Duration,
	}
	flags := cmd.Flags()
	if flags.Changed("usb") {
		opts.USB = discoverUSB
	}
	if flags.Changed("mdns") {
		opts.MDNS = discoverMDNS
	}
	if flags.Changed("serial") {
		opts.Serial = discoverSerial
	}
	if flags.Changed("window") {
		opts.MDNSWindow = discoverWindow
	}

	found, err := transport.Discover(cmd.Context(), opts)
	if err != nil {
		// Partial results are still worth showing.
		logger.Warn("discovery incomplete", "err", err)
	}

	if format != formatText {
		return encode(os.Stdout, format, found)
	}
	rows := make([][]string, len(found))
	for i, c := range found {
		rows[i] = []string{string(c.Source), c.Link, c.Address, c.Label()}
	}
	fmt.Println(renderTable([]string{"SOURCE", "LINK", "ADDRESS", "DESCRIPTION"}, rows))
	return nil
}
