package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"adgrid/internal/checkout"
	"adgrid/internal/signature"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var errAuthRequired = errors.New("authentication required: pass --token, or --user against a development server")

// terminalCheckout stands in for the hosted checkout: the buyer pastes the
// payment id and signature, or the secret signs a simulated payment.
type terminalCheckout struct {
	in     *bufio.Reader
	out    io.Writer
	secret string
}

func (t *terminalCheckout) prompt(label string) (string, error) {
	fmt.Fprint(t.out, label)
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *terminalCheckout) Open(_ context.Context, order *checkout.Order) (*checkout.Confirmation, error) {
	fmt.Fprintf(t.out, "Order %s: %d %s (minor units)\n", order.ID, order.Amount, order.Currency)

	if t.secret != "" {
		paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
		return &checkout.Confirmation{
			OrderID:   order.ID,
			PaymentID: paymentID,
			Signature: signature.Sign(order.ID, paymentID, t.secret),
		}, nil
	}

	paymentID, err := t.prompt("Payment id (empty to cancel, fail:<reason> to decline): ")
	if err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, checkout.ErrCancelled
	}
	if reason, ok := strings.CutPrefix(paymentID, "fail:"); ok {
		return nil, &checkout.PaymentFailedError{Description: strings.TrimSpace(reason)}
	}

	sig, err := t.prompt("Signature: ")
	if err != nil {
		return nil, err
	}
	if sig == "" {
		return nil, checkout.ErrCancelled
	}

	return &checkout.Confirmation{OrderID: order.ID, PaymentID: paymentID, Signature: sig}, nil
}

func buyCmd(opts *rootOptions) *cobra.Command {
	var secret string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "buy [box]",
		Short: "Purchase a box on the grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("box must be a number: %w", err)
			}

			if opts.token == "" && opts.user == "" {
				return errAuthRequired
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			api := checkout.NewHTTPAPI(opts.server, opts.token, opts.user)

			cfg, err := api.Config(ctx)
			if err != nil {
				return err
			}

			flow := checkout.NewFlow(api, &terminalCheckout{
				in:     bufio.NewReader(cmd.InOrStdin()),
				out:    out,
				secret: secret,
			}, checkout.Options{
				UserID:    opts.user,
				UnitPrice: cfg.UnitPrice,
				Currency:  cfg.Currency,
				OnTransition: func(from, to checkout.State) {
					if verbose {
						fmt.Fprintf(out, "  %s -> %s\n", from, to)
					}
				},
			})

			if err := flow.Refresh(ctx); err != nil {
				var se *checkout.ServerError
				if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
					return errAuthRequired
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load your purchases: %v\n", err)
			}

			err = flow.Buy(ctx, box)
			var failed *checkout.PaymentFailedError
			switch {
			case errors.Is(err, checkout.ErrCancelled):
				fmt.Fprintln(out, "Checkout cancelled.")
				return nil
			case errors.As(err, &failed):
				return fmt.Errorf("payment declined: %s", failed.Description)
			case err != nil:
				return err
			}

			fmt.Fprintf(out, "Box %d purchased. Your boxes: %v\n", box, flow.Purchased())
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "simulate-secret", "", "Sign a simulated payment with this secret instead of prompting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print state transitions")

	return cmd
}
