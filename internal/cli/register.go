package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/seva-trust/donorportal/api"
)

func newRegisterCmd(a *app) *cobra.Command {
	var payload api.RegisterPayload

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new portal account",
		Long:  "Create a new portal account. Registration does not log you in; run `portal login` afterwards.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if payload.Username == "" {
				if payload.Username, err = prompt("Username: "); err != nil {
					return err
				}
			}
			if payload.Email == "" {
				if payload.Email, err = prompt("Email: "); err != nil {
					return err
				}
			}
			if payload.Password == "" {
				if payload.Password, err = prompt("Password: "); err != nil {
					return err
				}
			}
			payload.ConfirmPassword = payload.Password

			result := a.session.Register(cmd.Context(), payload)
			if !result.Success {
				return errors.New(result.Message)
			}
			fmt.Println("Account created. Run `portal login` to sign in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&payload.Username, "username", "", "Username (prompted if omitted)")
	cmd.Flags().StringVar(&payload.Email, "email", "", "Email address (prompted if omitted)")
	cmd.Flags().StringVar(&payload.Password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&payload.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&payload.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&payload.Phone, "phone", "", "Contact number")
	return cmd
}
