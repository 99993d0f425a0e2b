package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with username or email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if username == "" {
				if username, err = prompt("Username or email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt("Password: "); err != nil {
					return err
				}
			}

			result := a.session.Login(cmd.Context(), username, password)
			if !result.Success {
				return errors.New(result.Message)
			}

			snap := a.session.Snapshot()
			fmt.Printf("Logged in as %s\n", snap.User.FullName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email (prompted if omitted)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted if omitted)")
	return cmd
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "read input")
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("input cannot be empty")
	}
	return value, nil
}
