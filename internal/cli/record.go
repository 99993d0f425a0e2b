package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/seva-trust/donorportal/payment"
)

func newRecordCmd(a *app) *cobra.Command {
	var form payment.FormData

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an offline payment (staff only)",
		Long:  "Record a cash or bank transfer payment as already completed, skipping the gateway. The backend rejects this for non-staff accounts.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := a.session.CheckAuth(cmd.Context())
			if !snap.Authenticated() {
				return errors.New("not logged in")
			}
			if !snap.User.CanRecordPayments() {
				return errors.New(payment.MsgManualForbidden)
			}

			receipt, err := a.flow.ManualPayment(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Printf("Payment recorded. Donation ID: %s\n", receipt.DonationID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&form.Amount, "amount", 0, "Amount in whole currency units")
	cmd.Flags().StringVar(&form.PaymentFor, "for", "donation", "What the payment is for (donation, membership)")
	cmd.Flags().StringVar(&form.Name, "name", "", "Payor name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Payor email")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "Payor phone")
	cmd.Flags().StringVar(&form.Notes, "notes", "", "Optional note, e.g. the bank reference")
	cmd.MarkFlagRequired("amount")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("phone")
	return cmd
}
