package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

type rootOptions struct {
	server string
	token  string
	user   string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "adgridctl",
		Short:         "Command line client for the ad grid marketplace",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("ADGRID_SERVER", "http://localhost:8080"), "Marketplace base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ADGRID_TOKEN"), "Bearer access token")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", os.Getenv("ADGRID_USER"), "User id")

	rootCmd.AddCommand(boxesCmd(opts))
	rootCmd.AddCommand(buyCmd(opts))
	rootCmd.AddCommand(signCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
