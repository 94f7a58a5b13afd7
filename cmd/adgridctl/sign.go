package main

import (
	"errors"
	"fmt"
	"os"

	"adgrid/internal/signature"

	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	var orderID, paymentID, secret string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the checkout signature for an order and payment",
		Long: `Compute the hex HMAC-SHA256 signature the processor returns after a
successful checkout. Useful against a server running with test credentials.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or RAZORPAY_WEBHOOK_SECRET is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), signature.Sign(orderID, paymentID, secret))
			return nil
		},
	}

	cmd.Flags().StringVar(&orderID, "order", "", "Order id")
	cmd.Flags().StringVar(&paymentID, "payment", "", "Payment id")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("RAZORPAY_WEBHOOK_SECRET"), "Signing secret")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("payment")

	return cmd
}
