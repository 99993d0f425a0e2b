package cli

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and membership status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := a.session.CheckAuth(cmd.Context())
			if !snap.Authenticated() {
				return errors.New("not logged in")
			}

			u := snap.User
			fmt.Printf("Name:     %s\n", u.FullName())
			fmt.Printf("Username: %s\n", u.Username)
			fmt.Printf("Email:    %s\n", u.Email)
			if u.MembershipActive(time.Now()) {
				if u.MembershipValidUntil.IsZero() {
					fmt.Println("Member:   yes")
				} else {
					fmt.Printf("Member:   yes, until %s\n", u.MembershipValidUntil.Format("2 Jan 2006"))
				}
			} else {
				fmt.Println("Member:   no")
			}
			if u.CanRecordPayments() {
				fmt.Println("Staff:    yes")
			}
			return nil
		},
	}
}
