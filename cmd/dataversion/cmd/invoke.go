package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/ssargent/dataversion/pkg/account"
	"github.com/ssargent/dataversion/pkg/host"
	"github.com/ssargent/dataversion/pkg/instruction"
)

// newCreateCommand represents the create command
func newCreateCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "create [address]",
		Short: "Allocate a zeroed account slot",
		Long: `Allocate a zeroed, program owned account slot. A new address is generated
when none is given.

Example:
  dataversion create
  dataversion create 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin --size 2048`,
		Args: cobra.MaximumNArgs(1),
		RunE: withHost(func(cmd *cobra.Command, args []string, h *host.Host) error {
			address := solana.NewWallet().PublicKey()
			if len(args) == 1 {
				parsed, err := account.ParseAddress(args[0])
				if err != nil {
					return fmt.Errorf("invalid address: %w", err)
				}
				address = parsed
			}
			if !cmd.Flags().Changed("size") {
				size = slotSizeFrom(cmd)
			}

			acct, err := h.CreateAccount(cmd.Context(), address, size)
			if err != nil {
				return err
			}
			cmd.Printf("Created account %s (%d bytes, owner %s)\n", acct.Address, len(acct.Data), acct.Owner)
			return nil
		}),
	}

	cmd.Flags().IntVar(&size, "size", 0, "Slot size in bytes (defaults to the configured slot size)")
	return cmd
}

// newInitializeCommand represents the initialize command
func newInitializeCommand() *cobra.Command {
	return newInvokeCommand(
		"initialize <address>",
		"Initialize an account record",
		cobra.ExactArgs(1),
		func(args []string) (instruction.Command, error) {
			return instruction.Initialize{}, nil
		},
	)
}

// newSetValueCommand represents the set-value command
func newSetValueCommand() *cobra.Command {
	return newInvokeCommand(
		"set-value <address> <value>",
		"Set the record value",
		cobra.ExactArgs(2),
		func(args []string) (instruction.Command, error) {
			value, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			return instruction.SetValue{Value: value}, nil
		},
	)
}

// newSetTextCommand represents the set-text command
func newSetTextCommand() *cobra.Command {
	return newInvokeCommand(
		"set-text <address> <text>",
		"Set the record text",
		cobra.ExactArgs(2),
		func(args []string) (instruction.Command, error) {
			return instruction.SetText{Text: args[1]}, nil
		},
	)
}

// newRawCommand submits hex encoded instruction bytes as they are.
func newRawCommand() *cobra.Command {
	cmd := newInvokeCommand(
		"raw <address> <hex>",
		"Submit raw instruction bytes",
		cobra.ExactArgs(2),
		nil,
	)
	cmd.Long = `Submit hex encoded instruction bytes without client-side validation.

Example:
  dataversion raw <address> ff`
	return cmd
}

type commandBuilder func(args []string) (instruction.Command, error)

func newInvokeCommand(use, short string, args cobra.PositionalArgs, build commandBuilder) *cobra.Command {
	var tracking []string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: withHost(func(cmd *cobra.Command, args []string, h *host.Host) error {
			req, err := buildRequest(args, tracking, build)
			if err != nil {
				return err
			}

			res, err := h.Invoke(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res.Outcome.UpgradedFrom != nil {
				cmd.Printf("Upgraded record from version %d\n", *res.Outcome.UpgradedFrom)
			}
			cmd.Printf("Invocation %s succeeded\n", res.ID)
			return printRecord(cmd.OutOrStdout(), req.Target, res.Record)
		}),
	}

	cmd.Flags().StringSliceVar(&tracking, "tracking", nil, "Tracking account addresses (must be program owned)")
	return cmd
}

func buildRequest(args, tracking []string, build commandBuilder) (host.Request, error) {
	target, err := account.ParseAddress(args[0])
	if err != nil {
		return host.Request{}, fmt.Errorf("invalid address: %w", err)
	}
	req := host.Request{Target: target}

	for _, s := range tracking {
		address, err := account.ParseAddress(s)
		if err != nil {
			return host.Request{}, fmt.Errorf("invalid tracking address %q: %w", s, err)
		}
		req.Tracking = append(req.Tracking, address)
	}

	if build == nil {
		req.Data, err = hex.DecodeString(args[1])
		if err != nil {
			return host.Request{}, fmt.Errorf("invalid instruction hex: %w", err)
		}
		return req, nil
	}

	command, err := build(args)
	if err != nil {
		return host.Request{}, err
	}
	req.Data, err = instruction.Encode(command)
	if err != nil {
		return host.Request{}, err
	}
	return req, nil
}
