// Command dscctl is a client for a running dscengine: account views,
// deposits, minting, burning, redemptions and liquidations.
package main

import (
	"DSCEngine/internal/server"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	addr    string
	from    string
	timeout time.Duration

	conn   *grpc.ClientConn
	client *server.Client

	rootCmd = &cobra.Command{
		Use:           "dscctl",
		Short:         "Talk to a dscengine over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			conn, err = grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			client = server.NewClient(conn)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if conn != nil {
				conn.Close()
			}
		},
	}
)

func init() {
	defaultAddr := os.Getenv("DSC_GRPC_ADDR")
	if defaultAddr == "" {
		defaultAddr = "localhost:9090"
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", defaultAddr, "dscengine gRPC address")
	rootCmd.PersistentFlags().StringVar(&from, "from", os.Getenv("DSC_FROM"), "sender address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(accountCmd, healthCmd, tokensCmd, constantsCmd, historyCmd, convertCmd)
	rootCmd.AddCommand(depositCmd, mintCmd, burnCmd, redeemCmd, liquidateCmd, fundCmd)
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}
