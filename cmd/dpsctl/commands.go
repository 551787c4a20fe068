package main

import (
	"context"
	"fmt"
	"os"

	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/spf13/cobra"

	"github.com/opendps/godps/dps"
	"github.com/opendps/godps/transport"
)

var rootCmd = &cobra.Command{
	Use:           "dpsctl",
	Short:         "Instrument an OpenDPS device",
	Long: `dpsctl talks to an OpenDPS power supply over a serial port or, if the
device has a wifi bridge, over UDP. Everything you can do with the buttons
and dial on the device can be done from here, including firmware upgrades.

The device is picked from --device, the DPSIF environment variable, or the
device setting in ~/.dpsctl.yaml, in that order.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runRoot,
}

var (
	flagDevice   string
	flagVoltage  int
	flagCurrent  int
	flagPower    string
	flagPing     bool
	flagLock     bool
	flagUnlock   bool
	flagStatus   bool
	flagJSON     bool
	flagVerbose  bool
	flagFirmware string
	flagForce    bool
)

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagDevice, "device", "d", "", "OpenDPS device to connect to: a tty device or an IP address")
	f.IntVarP(&flagVoltage, "voltage", "u", 0, "Set voltage (millivolt)")
	f.IntVarP(&flagCurrent, "current", "i", 0, "Set maximum current (milliampere)")
	f.StringVarP(&flagPower, "power", "p", "", "Power 'on' or 'off'")
	f.BoolVarP(&flagPing, "ping", "P", false, "Ping device")
	f.BoolVarP(&flagLock, "lock", "L", false, "Lock device keys")
	f.BoolVarP(&flagUnlock, "unlock", "l", false, "Unlock device keys")
	f.BoolVarP(&flagStatus, "status", "s", false, "Read voltage/current settings and measurements")
	f.BoolVarP(&flagJSON, "json", "j", false, "Output status as JSON")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose communications")
	f.StringVarP(&flagFirmware, "upgrade", "U", "", "Perform upgrade of OpenDPS firmware from file")
	f.BoolVarP(&flagForce, "force", "f", false, "Force upgrade even if dpsctl complains about the firmware")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runRoot(cmd *cobra.Command, _ []string) error {
	log := logging.New(logging.Zerolog, "dpsctl", os.Stderr)
	if flagVerbose {
		log.SetLevel(types.DebugLevel)
	} else {
		log.SetLevel(types.InfoLevel)
	}

	device := resolveDevice()
	if device == "" {
		return fmt.Errorf("no comms interface specified (use --device, DPSIF or ~/.dpsctl.yaml)")
	}

	conn, err := transport.Dial(device)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := dps.New(conn,
		dps.WithLogger(log),
		dps.WithForce(flagForce),
		dps.WithProgressCallback(updateUpgradeBar),
		dps.WithOCPCallback(func(iCutMA uint16) {
			fmt.Fprintf(os.Stderr, "over-current protection tripped at %d mA\n", iCutMA)
		}),
	)

	ctx := context.Background()

	if flagPing {
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("timeout talking to device %s", device)
		}
	}
	if flagFirmware != "" {
		if err := runUpgrade(ctx, client, flagFirmware); err != nil {
			return err
		}
	}
	if flagLock {
		if err := client.Lock(ctx, true); err != nil {
			return err
		}
	}
	if flagUnlock {
		if err := client.Lock(ctx, false); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("voltage") {
		mv, err := milliArg(flagVoltage, "voltage")
		if err != nil {
			return err
		}
		if err := client.SetVoltage(ctx, mv); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("current") {
		ma, err := milliArg(flagCurrent, "current")
		if err != nil {
			return err
		}
		if err := client.SetCurrentLimit(ctx, ma); err != nil {
			return err
		}
	}
	if flagPower != "" {
		on, err := parsePower(flagPower)
		if err != nil {
			return err
		}
		if err := client.PowerEnable(ctx, on); err != nil {
			return err
		}
	}
	if flagStatus {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if err := printStatus(st, flagJSON); err != nil {
			return err
		}
	}
	return nil
}

// resolveDevice picks the comms interface: flag, then DPSIF, then config.
func resolveDevice() string {
	if flagDevice != "" {
		return flagDevice
	}
	if v := os.Getenv("DPSIF"); v != "" {
		return v
	}
	if cfg, err := loadConfig(); err == nil {
		return cfg.Device
	}
	return ""
}

func milliArg(v int, name string) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%s %d out of range (0-65535)", name, v)
	}
	return uint16(v), nil
}

func parsePower(s string) (bool, error) {
	switch s {
	case "on", "1":
		return true, nil
	case "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("please say on/off or 1/0")
	}
}
