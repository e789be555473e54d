package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect effective configuration",
	}

	cmd.AddCommand(configShowCmd())

	return cmd
}

type filteringView struct {
	UDPTimeout                string `json:"udp_timeout"`
	ICMPTimeout               string `json:"icmp_timeout"`
	TCPTransTimeout           string `json:"tcp_trans_timeout"`
	TCPEstTimeout             string `json:"tcp_est_timeout"`
	TCPIncomingSynTimeout     string `json:"tcp_incoming_syn_timeout"`
	DropExternalInitiatedTCP bool   `json:"drop_v4_initiated_tcp"`
	DropICMPv6Info           bool   `json:"drop_icmpv6_info"`
	AddressDependentFiltering bool  `json:"address_dependent_filtering"`
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective filtering configuration, after defaults and validation",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, cfg, err := loadCore()
			if err != nil {
				return err
			}

			f := cfg.Filtering.Resolve()
			view := filteringView{
				UDPTimeout:                f.UDPTimeout.String(),
				ICMPTimeout:               f.ICMPTimeout.String(),
				TCPTransTimeout:           f.TCPTransTimeout.String(),
				TCPEstTimeout:             f.TCPEstTimeout.String(),
				TCPIncomingSynTimeout:     f.TCPIncomingSynTimeout.String(),
				DropExternalInitiatedTCP:  f.DropExternalInitiatedTCP,
				DropICMPv6Info:            f.DropICMPv6Info,
				AddressDependentFiltering: f.AddressDependentFiltering,
			}

			switch outputFormat {
			case formatJSON:
				data, err := json.MarshalIndent(view, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				fmt.Println(string(data))
			default:
				var buf strings.Builder
				w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "UDP Timeout:\t%s\n", view.UDPTimeout)
				fmt.Fprintf(w, "ICMP Timeout:\t%s\n", view.ICMPTimeout)
				fmt.Fprintf(w, "TCP Trans Timeout:\t%s\n", view.TCPTransTimeout)
				fmt.Fprintf(w, "TCP Est Timeout:\t%s\n", view.TCPEstTimeout)
				fmt.Fprintf(w, "TCP Incoming SYN Timeout:\t%s\n", view.TCPIncomingSynTimeout)
				fmt.Fprintf(w, "Drop V4-Initiated TCP:\t%t\n", view.DropExternalInitiatedTCP)
				fmt.Fprintf(w, "Drop ICMPv6 Info:\t%t\n", view.DropICMPv6Info)
				fmt.Fprintf(w, "Address-Dependent Filtering:\t%t\n", view.AddressDependentFiltering)
				if err := w.Flush(); err != nil {
					return fmt.Errorf("flush tabwriter: %w", err)
				}
				fmt.Print(buf.String())
			}

			return nil
		},
	}
}
