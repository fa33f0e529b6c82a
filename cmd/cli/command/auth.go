package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryoozeen/RCS/internal/middleware/auth"
	"github.com/ryoozeen/RCS/internal/protocol"
	"github.com/ryoozeen/RCS/pkg/client"
)

// auth.go handles operator account commands: enroll, login and logout.

var errNotAdmitted = errors.New("relay did not admit this console as operator, run \"rcsctl login\" first")

// enrollCmd represents the enroll command
var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a new operator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		password, _ := cmd.Flags().GetString("password")
		username, _ := cmd.Flags().GetString("username")
		carModel, _ := cmd.Flags().GetString("car-model")

		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := request(cmd.Context(), c, &protocol.EnrollReq{
			ID:       id,
			Password: auth.Digest(password),
			Username: username,
			CarModel: carModel,
		}, protocol.TagEnrollRes)
		if err != nil {
			return err
		}
		enroll := res.(*protocol.EnrollRes)
		if !enroll.Registered {
			return fmt.Errorf("enrollment rejected: %s", reasonOr(enroll, "unknown reason"))
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✓ Enrollment successful! Please login to continue.")
		return nil
	},
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		password, _ := cmd.Flags().GetString("password")

		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := request(cmd.Context(), c, &protocol.LoginReq{ID: id, Password: auth.Digest(password)}, protocol.TagLoginRes)
		if err != nil {
			return err
		}
		login := res.(*protocol.LoginRes)
		if !login.Logined {
			return fmt.Errorf("login failed: %s", reasonOr(login, "invalid credentials"))
		}

		profile.OperatorID = id
		profile.Token = login.Token
		if err := saveProfile(cfgFile, profile); err != nil {
			return fmt.Errorf("logged in but could not save profile: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", id)
		if login.Token == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "  relay issues no session tokens, control commands will identify as operator")
		}
		return nil
	},
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile.Token = ""
		if err := saveProfile(cfgFile, profile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
		return nil
	},
}

// operatorSession dials the relay and takes the operator role, with the saved
// token when there is one.
func operatorSession(ctx context.Context) (*client.TCPClient, error) {
	c, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	if profile.Token != "" {
		res, err := request(ctx, c, &protocol.LoginReq{ID: profile.OperatorID, Token: profile.Token}, protocol.TagLoginRes)
		if err != nil {
			c.Close()
			return nil, err
		}
		if res.(*protocol.LoginRes).Logined {
			return c, nil
		}
	}

	res, err := request(ctx, c, &protocol.IdentifyReq{ClientName: "Operator"}, protocol.TagIdentifyRes)
	if err != nil {
		c.Close()
		return nil, err
	}
	if !res.(*protocol.IdentifyRes).Identified {
		c.Close()
		return nil, errNotAdmitted
	}
	return c, nil
}

func reasonOr(m protocol.Message, fallback string) string {
	if r := m.GetReason(); r != "" {
		return r
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(enrollCmd, loginCmd, logoutCmd)

	enrollCmd.Flags().String("id", "", "operator login id")
	enrollCmd.Flags().String("password", "", "operator password")
	enrollCmd.Flags().String("username", "", "display name")
	enrollCmd.Flags().String("car-model", "", "vehicle model")
	enrollCmd.MarkFlagRequired("id")
	enrollCmd.MarkFlagRequired("password")

	loginCmd.Flags().String("id", "", "operator login id")
	loginCmd.Flags().String("password", "", "operator password")
	loginCmd.MarkFlagRequired("id")
	loginCmd.MarkFlagRequired("password")
}
