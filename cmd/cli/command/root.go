package command

// root.go defines the root command for rcsctl and its global flags.

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryoozeen/RCS/internal/protocol"
	"github.com/ryoozeen/RCS/pkg/client"
)

var (
	cfgFile string        // profile path
	host    string        // relay host, overrides the profile
	port    int           // relay port, overrides the profile
	timeout time.Duration // per request
	profile Profile       // loaded before every command
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rcsctl",
	Short: "rcsctl - remote vehicle control console",
	Long: `rcsctl talks to the RCS relay. As an operator it can:
- enroll and log in an operator account
- send control requests (start, door, trunk, air, temp, heat, light, park, stop-charge)
- poll vehicle status

"rcsctl agent" runs a simulated vehicle agent for testing the relay.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			p.Host = host
		}
		if cmd.Flags().Changed("port") {
			p.Port = port
		}
		profile = p
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultProfilePath(), "profile file path")
	rootCmd.PersistentFlags().StringVar(&host, "host", defaultHost, "relay host")
	rootCmd.PersistentFlags().IntVar(&port, "port", defaultPort, "relay port")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
}

// dial connects to the relay named by the profile.
func dial(ctx context.Context) (*client.TCPClient, error) {
	c := client.NewTCPClient()
	c.Codec().SetLegacy(profile.Legacy)
	if err := c.Connect(ctx, profile.Host, profile.Port); err != nil {
		return nil, err
	}
	return c, nil
}

// request sends msg and waits for want under the --timeout budget.
func request(ctx context.Context, c *client.TCPClient, msg protocol.Message, want protocol.Tag) (protocol.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := c.Request(ctx, msg, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Tag(), err)
	}
	return res, nil
}
