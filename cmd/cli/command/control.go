package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryoozeen/RCS/internal/protocol"
)

// control.go builds one subcommand per vehicle control.

// switchControl is a control that takes on/off.
type switchControl struct {
	use    string
	short  string
	onWord string // what "on" means for this control, for output
	build  func(on bool) protocol.Message
	want   protocol.Tag
	result func(protocol.Message) bool
}

var switchControls = []switchControl{
	{
		use: "start", short: "Start or stop the vehicle", onWord: "started",
		build:  func(on bool) protocol.Message { return &protocol.StartReq{Active: on} },
		want:   protocol.TagStartRes,
		result: func(m protocol.Message) bool { return m.(*protocol.StartRes).ActiveStatus },
	},
	{
		use: "door", short: "Open or close the doors", onWord: "open",
		build:  func(on bool) protocol.Message { return &protocol.DoorReq{Door: on} },
		want:   protocol.TagDoorRes,
		result: func(m protocol.Message) bool { return m.(*protocol.DoorRes).DoorStatus },
	},
	{
		use: "trunk", short: "Open or close the trunk", onWord: "open",
		build:  func(on bool) protocol.Message { return &protocol.TrunkReq{Trunk: on} },
		want:   protocol.TagTrunkRes,
		result: func(m protocol.Message) bool { return m.(*protocol.TrunkRes).TrunkStatus },
	},
	{
		use: "air", short: "Turn the air conditioning on or off", onWord: "on",
		build:  func(on bool) protocol.Message { return &protocol.AirReq{Air: on} },
		want:   protocol.TagAirRes,
		result: func(m protocol.Message) bool { return m.(*protocol.AirRes).AirStatus },
	},
	{
		use: "heat", short: "Turn the heater on or off", onWord: "on",
		build:  func(on bool) protocol.Message { return &protocol.HeatReq{Heat: on} },
		want:   protocol.TagHeatRes,
		result: func(m protocol.Message) bool { return m.(*protocol.HeatRes).HeatStatus },
	},
	{
		use: "light", short: "Turn the lights on or off", onWord: "on",
		build:  func(on bool) protocol.Message { return &protocol.LightReq{Light: on} },
		want:   protocol.TagLightRes,
		result: func(m protocol.Message) bool { return m.(*protocol.LightRes).LightStatus },
	},
}

// parseSwitch accepts the usual spellings of on and off.
func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "open", "true", "1", "yes":
		return true, nil
	case "off", "close", "closed", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}

func newSwitchCommand(sc switchControl) *cobra.Command {
	return &cobra.Command{
		Use:       sc.use + " on|off",
		Short:     sc.short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			c, err := operatorSession(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := request(cmd.Context(), c, sc.build(on), sc.want)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sc.use, describe(sc.result(res), sc.onWord, res))
			return nil
		},
	}
}

func describe(ok bool, onWord string, m protocol.Message) string {
	state := "off"
	if ok {
		state = onWord
	}
	if r := m.GetReason(); r != "" {
		return state + " (" + r + ")"
	}
	return state
}

// tempCmd sets the cabin temperature
var tempCmd = &cobra.Command{
	Use:   "temp <degrees>",
	Short: "Set the cabin temperature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		degrees, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid temperature %q: %w", args[0], err)
		}
		c, err := operatorSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := request(cmd.Context(), c, &protocol.TempReq{Temp: degrees}, protocol.TagTempRes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "temp: %s\n", describe(res.(*protocol.TempRes).TempStatus, "set", res))
		return nil
	},
}

// parkCmd parks (on) or pulls out (off) and follows the progress reports
var parkCmd = &cobra.Command{
	Use:   "park on|off",
	Short: "Park the vehicle or pull it out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		wait, _ := cmd.Flags().GetDuration("wait")

		c, err := operatorSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		updates, cancel := c.Subscribe(protocol.TagParkRes)
		defer cancel()
		if err := c.Send(&protocol.ParkReq{Control: on}); err != nil {
			return err
		}

		deadline := time.After(wait)
		for {
			select {
			case m := <-updates:
				res := m.(*protocol.ParkRes)
				fmt.Fprintf(cmd.OutOrStdout(), "park: %s parking=%t driving=%t\n", reasonOr(res, "-"), res.Parking, res.Driving)
				if res.ControlStatus {
					return nil
				}
				// progress reports carry a reason, a bare false is the final failure
				if res.Reason == "" {
					return fmt.Errorf("park: agent reported failure")
				}
			case <-c.Done():
				return fmt.Errorf("relay closed the connection")
			case <-deadline:
				return fmt.Errorf("park: no final report within %s", wait)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}
	},
}

// stopChargeCmd interrupts charging
var stopChargeCmd = &cobra.Command{
	Use:   "stop-charge",
	Short: "Stop charging",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := operatorSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := request(cmd.Context(), c, &protocol.StopChargeReq{Stop: true}, protocol.TagStopChargeRes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stop-charge: %s\n", describe(res.(*protocol.StopChargeRes).StopStatus, "stopped", res))
		return nil
	},
}

// statusCmd polls the vehicle state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vehicle status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := operatorSession(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := request(cmd.Context(), c, &protocol.StatusReq{CarStatus: true}, protocol.TagStatusRes)
		if err != nil {
			return err
		}
		printStatus(cmd, res.(*protocol.StatusRes))
		return nil
	},
}

func printStatus(cmd *cobra.Command, s *protocol.StatusRes) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Vehicle status:")
	fmt.Fprintf(out, "  Battery:  %.0f%%\n", s.Battery*100)
	fmt.Fprintf(out, "  Charging: %t\n", s.Charging)
	fmt.Fprintf(out, "  Parking:  %t\n", s.Parking)
	fmt.Fprintf(out, "  Driving:  %t\n", s.Driving)
}

func init() {
	for _, sc := range switchControls {
		rootCmd.AddCommand(newSwitchCommand(sc))
	}
	rootCmd.AddCommand(tempCmd, parkCmd, stopChargeCmd, statusCmd)
	parkCmd.Flags().Duration("wait", 60*time.Second, "how long to follow parking progress")
}
