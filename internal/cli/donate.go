package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seva-trust/donorportal/payment"
)

func newDonateCmd(a *app) *cobra.Command {
	var (
		form   payment.FormData
		amount int64
	)

	cmd := &cobra.Command{
		Use:   "donate",
		Short: "Make a payment through the hosted checkout",
		Long:  "Create a payment order and open the hosted checkout page in your browser. Name, email, and phone are taken from your profile when logged in.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Best effort; anonymous donations are allowed.
			a.session.CheckAuth(cmd.Context())

			form.Amount = amount * 100
			unsubscribe := a.flow.Subscribe(func(snap payment.Snapshot) {
				a.log.Info().Stringer("state", snap.State).Msg("payment")
			})
			defer unsubscribe()

			receipt, err := a.flow.ProcessPayment(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Printf("Payment complete. Donation ID: %s\n", receipt.DonationID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "Amount in whole currency units")
	cmd.Flags().StringVar(&form.PaymentFor, "for", "donation", "What the payment is for (donation, membership)")
	cmd.Flags().StringVar(&form.Name, "name", "", "Payor name (defaults to profile)")
	cmd.Flags().StringVar(&form.Email, "email", "", "Payor email (defaults to profile)")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "Payor phone (defaults to profile)")
	cmd.Flags().StringVar(&form.Notes, "notes", "", "Optional note attached to the payment")
	cmd.MarkFlagRequired("amount")
	return cmd
}
