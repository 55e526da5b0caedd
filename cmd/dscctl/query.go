package main

import (
	"DSCEngine/internal/server"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account <user>",
	Short: "Show collateral, debt and health factor of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()
		info, err := client.GetAccountInformation(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "user\t%s\n", info.User)
		fmt.Fprintf(w, "dsc minted\t%s\n", fromWei(info.TotalDscMinted))
		fmt.Fprintf(w, "collateral (usd)\t%s\n", fromWei(info.CollateralValueInUsd))
		fmt.Fprintf(w, "health factor\t%s (%s)\n", healthFactor(info.HealthFactor), info.Status)
		if info.DscBalance != "" {
			fmt.Fprintf(w, "dsc balance\t%s\n", fromWei(info.DscBalance))
		}
		for _, c := range info.Collateral {
			fmt.Fprintf(w, "deposited %s\t%s\n", c.Token, fromWei(c.Amount))
		}
		for _, c := range info.Wallet {
			fmt.Fprintf(w, "wallet %s\t%s\n", c.Token, fromWei(c.Amount))
		}
		fmt.Fprintf(w, "as of sequence\t%d\n", info.Sequence)
		return w.Flush()
	},
}

var healthCmd = &cobra.Command{
	Use:   "health <user>",
	Short: "Show the health factor of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()
		hf, err := client.GetHealthFactor(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", healthFactor(hf.HealthFactor), hf.Status)
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List collateral tokens and their price feeds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()
		reply, err := client.GetCollateralTokens(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tPRICE FEED")
		for _, t := range reply.Tokens {
			fmt.Fprintf(w, "%s\t%s\n", t.Token, t.PriceFeed)
		}
		fmt.Fprintf(w, "dsc\t%s\n", reply.Dsc)
		return w.Flush()
	},
}

var constantsCmd = &cobra.Command{
	Use:   "constants",
	Short: "Print the engine's risk constants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext()
		defer cancel()
		c, err := client.GetConstants(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "precision\t%s\n", c.Precision)
		fmt.Fprintf(w, "additional feed precision\t%s\n", c.AdditionalFeedPrecision)
		fmt.Fprintf(w, "liquidation threshold\t%s\n", c.LiquidationThreshold)
		fmt.Fprintf(w, "liquidation bonus\t%s\n", c.LiquidationBonus)
		fmt.Fprintf(w, "liquidation precision\t%s\n", c.LiquidationPrecision)
		fmt.Fprintf(w, "min health factor\t%s\n", c.MinHealthFactor)
		return w.Flush()
	},
}

var (
	historyLimit  int
	historyBefore int64

	historyCmd = &cobra.Command{
		Use:   "history <user>",
		Short: "List logged operations touching an account, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			reply, err := client.GetOperationHistory(ctx, &server.HistoryRequest{
				User:   args[0],
				Limit:  historyLimit,
				Before: historyBefore,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tOPERATION\tCALLER\tTIME")
			for _, op := range reply.Operations {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", op.Sequence, op.Operation, op.Caller.Hex(), op.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
)

var (
	convertToken string
	convertUsd   string
	convertCmd   = &cobra.Command{
		Use:   "convert [amount]",
		Short: "Convert a token amount to USD, or --usd to a token amount",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext()
			defer cancel()
			if convertUsd != "" {
				usd, err := toWei(convertUsd)
				if err != nil {
					return err
				}
				reply, err := client.GetTokenAmountFromUsd(ctx, convertToken, usd)
				if err != nil {
					return err
				}
				fmt.Println(fromWei(reply.Amount))
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("need an amount or --usd")
			}
			amount, err := toWei(args[0])
			if err != nil {
				return err
			}
			reply, err := client.GetUsdValue(ctx, convertToken, amount)
			if err != nil {
				return err
			}
			fmt.Println(fromWei(reply.Amount))
			return nil
		},
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max operations")
	historyCmd.Flags().Int64Var(&historyBefore, "before", 0, "only sequences below this")

	convertCmd.Flags().StringVar(&convertToken, "token", "", "collateral token address")
	convertCmd.Flags().StringVar(&convertUsd, "usd", "", "USD amount to convert to the token")
	convertCmd.MarkFlagRequired("token")
}
