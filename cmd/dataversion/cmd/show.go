package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/dataversion/pkg/account"
	"github.com/ssargent/dataversion/pkg/codec"
	"github.com/ssargent/dataversion/pkg/host"
)

// newShowCommand represents the show command
func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Decode and display an account record",
		Long: `Decode and display the record stored at an address. Legacy records are
shown in the current layout; the stored bytes are not rewritten.`,
		Args: cobra.ExactArgs(1),
		RunE: withHost(func(cmd *cobra.Command, args []string, h *host.Host) error {
			address, err := account.ParseAddress(args[0])
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}

			acct, record, err := h.Inspect(address)
			if err != nil {
				return err
			}
			_, stored, err := codec.Header(acct.Data)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Owner:\t%s\n", acct.Owner)
			fmt.Fprintf(w, "Size:\t%d\n", len(acct.Data))
			fmt.Fprintf(w, "Stored Version:\t%d\n", stored)
			if err := w.Flush(); err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), address, record)
		}),
	}
}

// newListCommand represents the list command
func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: withHost(func(cmd *cobra.Command, args []string, h *host.Host) error {
			accts, err := h.Accounts()
			if err != nil {
				return err
			}
			if len(accts) == 0 {
				cmd.Println("No accounts found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "ADDRESS\tSIZE\tINITIALIZED\tVERSION")
			for _, acct := range accts {
				initialized, version, err := codec.Header(acct.Data)
				if err != nil {
					fmt.Fprintf(w, "%s\t%d\t-\t-\n", acct.Address, len(acct.Data))
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%t\t%d\n", acct.Address, len(acct.Data), initialized, version)
			}
			return nil
		}),
	}
}

// printRecord displays a decoded record in table format
func printRecord(out io.Writer, address account.Address, record *codec.Record) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Address:\t%s\n", address)
	fmt.Fprintf(w, "Initialized:\t%t\n", record.Initialized)
	if record.Initialized {
		fmt.Fprintf(w, "Version:\t%d\n", record.Version)
		fmt.Fprintf(w, "Value:\t%d\n", record.Content.Value)
		fmt.Fprintf(w, "Key:\t%s\n", record.Content.Key)
		fmt.Fprintf(w, "Text:\t%q\n", record.Content.Text)
	}
	return w.Flush()
}
