package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"serterm/pkg/config"
	"serterm/pkg/serial"
)

func (c *cli) connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <port|profile>",
		Short: "Connect to a serial port",
		Long: `Connect to a serial port directly or using a saved profile.

The port does not need to exist yet: serterm waits for it to appear.
Serial flags given on the command line override a profile's settings.

Examples:
  # Connect to /dev/ttyUSB0 at 9600 baud
  serterm connect /dev/ttyUSB0 -b 9600

  # Connect using a saved profile
  serterm connect mydevice`,
		Aliases: []string{"open", "c"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.connect(cmd, args[0])
		},
	}
}

func (c *cli) connect(cmd *cobra.Command, target string) error {
	serialCfg, err := c.resolve(cmd, target)
	if err != nil {
		return err
	}
	return c.start(cmd, serialCfg)
}

func (c *cli) start(cmd *cobra.Command, serialCfg serial.Config) error {
	cfg, err := c.appConfig(serialCfg)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Connecting to %s (%s)...\n", serialCfg.Port, serialCfg)
	}
	return c.run(cmd.Context(), cfg, cmd.OutOrStdout())
}

// resolve treats target as a port when it looks like one or is enumerated,
// and as a profile name otherwise
func (c *cli) resolve(cmd *cobra.Command, target string) (serial.Config, error) {
	if serial.LooksLikePort(target) || c.portKnown(target) {
		return c.serialConfig(target)
	}

	store, err := c.store()
	if err != nil {
		return serial.Config{}, err
	}
	cfg, err := store.Load(target)
	if err == nil {
		return c.override(cmd, cfg)
	}
	if !errors.Is(err, config.ErrNotFound) {
		return serial.Config{}, err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "'%s' is neither a serial port nor a saved profile.\n\n", target)
	if perr := c.printPorts(stderr, "table", false); perr != nil {
		fmt.Fprintf(stderr, "Error listing ports: %v\n", perr)
	}
	if profiles, _ := store.List(); len(profiles) > 0 {
		fmt.Fprintf(stderr, "\nSaved profiles:\n")
		for _, p := range profiles {
			fmt.Fprintf(stderr, "  %s (port: %s)\n", p.Name, p.Config.Port)
		}
	}
	return serial.Config{}, fmt.Errorf("cannot resolve %q", target)
}
