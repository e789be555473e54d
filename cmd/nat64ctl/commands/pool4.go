package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func pool4Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool4",
		Short: "Inspect the pool4 addresses a configuration would register",
	}

	cmd.AddCommand(pool4ListCmd())

	return cmd
}

func pool4ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the pool4 addresses loaded from configuration, in registration order",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			core, _, err := loadCore()
			if err != nil {
				return err
			}

			addrs := core.Pool4List()

			switch outputFormat {
			case formatJSON:
				strs := make([]string, 0, len(addrs))
				for _, a := range addrs {
					strs = append(strs, a.String())
				}
				data, err := json.MarshalIndent(strs, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal pool4 list: %w", err)
				}
				fmt.Println(string(data))
			default:
				var buf strings.Builder
				w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tADDRESS")
				for i, a := range addrs {
					fmt.Fprintf(w, "%d\t%s\n", i, a)
				}
				if err := w.Flush(); err != nil {
					return fmt.Errorf("flush tabwriter: %w", err)
				}
				fmt.Print(buf.String())
			}

			return nil
		},
	}
}
