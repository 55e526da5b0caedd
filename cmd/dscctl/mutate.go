package main

import (
	"DSCEngine/internal/ingestion"
	"DSCEngine/internal/server"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagToken   string
	flagUser    string
	flagAmount  string
	flagDsc     string
	flagCommand string
)

// send fills in the sender and a fresh command id, converts amounts to base
// units and prints the committed events.
func send(method string, req *ingestion.CommandJSON) error {
	if from == "" {
		return fmt.Errorf("--from is required")
	}
	req.Sender = from
	req.CommandID = flagCommand
	if req.CommandID == "" {
		req.CommandID = uuid.NewString()
	}

	var err error
	if req.AmountCollateral != "" {
		if req.AmountCollateral, err = toWei(req.AmountCollateral); err != nil {
			return err
		}
	}
	if req.AmountDsc != "" {
		if req.AmountDsc, err = toWei(req.AmountDsc); err != nil {
			return err
		}
	}

	ctx, cancel := requestContext()
	defer cancel()
	reply, err := client.Execute(ctx, method, req)
	if err != nil {
		return err
	}
	fmt.Printf("sequence %d  command %s\n", reply.Sequence, reply.CommandID)
	for _, ev := range reply.Events {
		fmt.Printf("  %s %s\n", ev.Event, string(ev.Payload))
	}
	fmt.Printf("state hash %s\n", reply.StateHash)
	return nil
}

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Deposit collateral, optionally minting DSC in the same operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &ingestion.CommandJSON{Token: flagToken, AmountCollateral: flagAmount}
		if flagDsc == "" {
			return send("DepositCollateral", req)
		}
		req.AmountDsc = flagDsc
		return send("DepositCollateralAndMintDsc", req)
	},
}

var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem collateral, optionally burning DSC first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &ingestion.CommandJSON{Token: flagToken, AmountCollateral: flagAmount}
		if flagDsc == "" {
			return send("RedeemCollateral", req)
		}
		req.AmountDsc = flagDsc
		return send("RedeemCollateralForDsc", req)
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint <amount>",
	Short: "Mint DSC against deposited collateral",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send("MintDsc", &ingestion.CommandJSON{AmountDsc: args[0]})
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn <amount>",
	Short: "Burn DSC to reduce debt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send("BurnDsc", &ingestion.CommandJSON{AmountDsc: args[0]})
	},
}

var liquidateCmd = &cobra.Command{
	Use:   "liquidate",
	Short: "Cover --dsc of --user's debt and seize --token collateral plus bonus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send("Liquidate", &ingestion.CommandJSON{Token: flagToken, User: flagUser, AmountDsc: flagDsc})
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund <to> <amount>",
	Short: "Credit wallet tokens (engine must run in dev mode)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := toWei(args[1])
		if err != nil {
			return err
		}
		ctx, cancel := requestContext()
		defer cancel()
		reply, err := client.Fund(ctx, &server.FundRequest{Token: flagToken, To: args[0], Amount: amount})
		if err != nil {
			return err
		}
		fmt.Printf("balance %s\n", fromWei(reply.Balance))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{depositCmd, redeemCmd, mintCmd, burnCmd, liquidateCmd} {
		c.Flags().StringVar(&flagCommand, "command-id", "", "command id (default: random UUID)")
	}

	depositCmd.Flags().StringVar(&flagToken, "token", "", "collateral token address")
	depositCmd.Flags().StringVar(&flagAmount, "amount", "", "collateral amount")
	depositCmd.Flags().StringVar(&flagDsc, "mint", "", "DSC to mint in the same operation")
	depositCmd.MarkFlagRequired("token")
	depositCmd.MarkFlagRequired("amount")

	redeemCmd.Flags().StringVar(&flagToken, "token", "", "collateral token address")
	redeemCmd.Flags().StringVar(&flagAmount, "amount", "", "collateral amount")
	redeemCmd.Flags().StringVar(&flagDsc, "burn", "", "DSC to burn first")
	redeemCmd.MarkFlagRequired("token")
	redeemCmd.MarkFlagRequired("amount")

	liquidateCmd.Flags().StringVar(&flagToken, "token", "", "collateral token to seize")
	liquidateCmd.Flags().StringVar(&flagUser, "user", "", "undercollateralized account")
	liquidateCmd.Flags().StringVar(&flagDsc, "dsc", "", "debt to cover")
	liquidateCmd.MarkFlagRequired("token")
	liquidateCmd.MarkFlagRequired("user")
	liquidateCmd.MarkFlagRequired("dsc")

	fundCmd.Flags().StringVar(&flagToken, "token", "", "token address")
	fundCmd.MarkFlagRequired("token")
}
