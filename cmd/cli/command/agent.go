package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryoozeen/RCS/internal/protocol"
	"github.com/ryoozeen/RCS/pkg/client"
)

// agentCmd runs a simulated vehicle agent
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a simulated vehicle agent",
	Long: `Connects to the relay as the vehicle agent and answers every control
request the way the robot agent does, including parking progress reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		battery, _ := cmd.Flags().GetFloat64("battery")
		step, _ := cmd.Flags().GetDuration("step")
		legacy, _ := cmd.Flags().GetBool("legacy")
		out := cmd.OutOrStdout()

		c := client.NewTCPClient()
		c.Codec().SetLegacy(legacy || profile.Legacy)
		car := newVehicle(battery)
		c.OnMessage(func(m protocol.Message) {
			replies := car.answer(m)
			if len(replies) == 0 {
				return
			}
			fmt.Fprintf(out, "← %s\n", m.Tag())
			// answer off the read loop, progress reports are paced by --step
			go func() {
				for i, r := range replies {
					if i > 0 {
						time.Sleep(step)
					}
					if err := c.Send(r); err != nil {
						fmt.Fprintf(out, "send %s failed: %v\n", r.Tag(), err)
						return
					}
					fmt.Fprintf(out, "→ %s %s\n", r.Tag(), r.GetReason())
				}
			}()
		})
		if err := c.Connect(cmd.Context(), profile.Host, profile.Port); err != nil {
			return err
		}
		defer c.Close()

		res, err := request(cmd.Context(), c, &protocol.IdentifyReq{ClientName: name}, protocol.TagIdentifyRes)
		if err != nil {
			return err
		}
		if !res.(*protocol.IdentifyRes).Identified {
			return fmt.Errorf("relay refused identify: %s", reasonOr(res, "no reason"))
		}
		fmt.Fprintf(out, "✓ Connected to %s:%d as %s, waiting for requests (Ctrl+C to quit)\n", profile.Host, profile.Port, name)

		select {
		case <-cmd.Context().Done():
			return nil
		case <-c.Done():
			return fmt.Errorf("relay closed the connection")
		}
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().String("name", "DOBOT", "identify name, any agent alias works")
	agentCmd.Flags().Float64("battery", 0.82, "reported battery level, 0.0 - 1.0")
	agentCmd.Flags().Duration("step", 2*time.Second, "delay between parking progress and result")
	agentCmd.Flags().Bool("legacy", false, "speak the deployed agent's tag names")
}
