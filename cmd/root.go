// Package cmd implements the serterm command line
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"serterm/pkg/app"
	"serterm/pkg/config"
	"serterm/pkg/history"
	"serterm/pkg/serial"
)

const version = "1.0.0"

// errMissingTarget is returned when serterm is started without a port
var errMissingTarget = errors.New("no port or profile given; usage: serterm <port|profile>")

// Keys shared by flags, environment variables (SERTERM_<KEY>) and config.yaml
const (
	keyBaud          = "baud"
	keyDataBits      = "data-bits"
	keyParity        = "parity"
	keyStopBits      = "stop-bits"
	keyFlowControl   = "flow-control"
	keyStrict        = "strict-escapes"
	keyCapture       = "capture"
	keyCaptureFormat = "capture-format"
	keyDebugLog      = "debug-log"
	keyVerbose       = "verbose"
	keyProfileDir    = "profile-dir"
)

// cli holds the state shared by every command of one command tree
type cli struct {
	v         *viper.Viper
	listPorts func() ([]serial.PortInfo, error)
	portKnown func(name string) bool
	run       func(ctx context.Context, cfg app.AppConfig, out io.Writer) error
}

func newCLI() *cli {
	return &cli{
		v:         viper.New(),
		listPorts: serial.GetDetailedPortsList,
		portKnown: serial.IsPortAvailable,
		run:       runApp,
	}
}

func runApp(ctx context.Context, cfg app.AppConfig, out io.Writer) error {
	runner, err := app.NewRunner(cfg, out)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	return newCLI().rootCmd()
}

// Execute runs the command line and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "serterm [port|profile]",
		Short: "A serial port terminal that survives disconnects",
		Long: `serterm connects the terminal to a serial port. Keys are sent to the
device and device output, including color escape sequences, is shown as it
arrives. When the port disappears serterm waits for it and reconnects.

Press Ctrl-T to open the command menu (quit, timestamp, help).
With "?" the available ports are listed. Without a port they are listed
as well and serterm exits with an error.`,
		Version:           version,
		Args:              cobra.MaximumNArgs(1),
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := c.printPorts(cmd.OutOrStdout(), "table", false); err != nil {
					return err
				}
				return errMissingTarget
			}
			if args[0] == "?" {
				return c.printPorts(cmd.OutOrStdout(), "table", false)
			}
			return c.connect(cmd, args[0])
		},
	}

	flags := root.PersistentFlags()
	flags.IntP(keyBaud, "b", 115200, "baud rate")
	flags.IntP(keyDataBits, "d", 8, "data bits (5, 6, 7 or 8)")
	flags.StringP(keyParity, "p", "none", "parity (none, odd, even)")
	flags.StringP(keyStopBits, "s", "1", "stop bits (1 or 2)")
	flags.StringP(keyFlowControl, "f", "none", "flow control (none, software, hardware)")
	flags.Bool(keyStrict, false, "abort on a malformed escape sequence instead of printing it")
	flags.String(keyCapture, "", "write the session transcript to this file")
	flags.String(keyCaptureFormat, "timestamped", "capture format (plain, timestamped, json)")
	flags.String(keyDebugLog, "", "write diagnostics to this file")
	flags.BoolP(keyVerbose, "v", false, "verbose output")
	flags.String(keyProfileDir, "", "directory holding saved profiles (default ~/.serterm)")

	root.AddCommand(c.connectCmd())
	root.AddCommand(c.listCmd())
	root.AddCommand(c.configCmd())
	return root
}

// initConfig layers flags over SERTERM_* environment variables over
// $XDG_CONFIG_HOME/serterm/config.yaml
func (c *cli) initConfig(cmd *cobra.Command) error {
	c.v.SetEnvPrefix("SERTERM")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	c.v.SetConfigName("config")
	c.v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		c.v.AddConfigPath(filepath.Join(dir, "serterm"))
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// serialConfig builds a port configuration from flags, environment and config file
func (c *cli) serialConfig(port string) (serial.Config, error) {
	parity, err := serial.ParseParity(c.v.GetString(keyParity))
	if err != nil {
		return serial.Config{}, err
	}
	flow, err := serial.ParseFlowControl(c.v.GetString(keyFlowControl))
	if err != nil {
		return serial.Config{}, err
	}
	stopBits, err := serial.ParseStopBits(c.v.GetString(keyStopBits))
	if err != nil {
		return serial.Config{}, err
	}

	cfg := serial.Config{
		Port:        port,
		BaudRate:    c.v.GetInt(keyBaud),
		DataBits:    c.v.GetInt(keyDataBits),
		Parity:      parity,
		StopBits:    stopBits,
		FlowControl: flow,
	}
	if err := cfg.Validate(); err != nil {
		return serial.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// override applies the serial flags given explicitly on the command line to
// a saved profile
func (c *cli) override(cmd *cobra.Command, cfg serial.Config) (serial.Config, error) {
	flags := cmd.Flags()
	from, err := c.serialConfig(cfg.Port)
	if err != nil {
		return serial.Config{}, err
	}
	if flags.Changed(keyBaud) {
		cfg.BaudRate = from.BaudRate
	}
	if flags.Changed(keyDataBits) {
		cfg.DataBits = from.DataBits
	}
	if flags.Changed(keyParity) {
		cfg.Parity = from.Parity
	}
	if flags.Changed(keyStopBits) {
		cfg.StopBits = from.StopBits
	}
	if flags.Changed(keyFlowControl) {
		cfg.FlowControl = from.FlowControl
	}
	return cfg, cfg.Validate()
}

func (c *cli) store() (*config.Store, error) {
	dir := c.v.GetString(keyProfileDir)
	if dir == "" {
		var err error
		if dir, err = config.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return config.NewStore(dir), nil
}

func (c *cli) appConfig(serialCfg serial.Config) (app.AppConfig, error) {
	format, err := history.ParseFormat(c.v.GetString(keyCaptureFormat))
	if err != nil {
		return app.AppConfig{}, err
	}

	cfg := app.DefaultAppConfig(serialCfg.Port)
	cfg.Serial = serialCfg
	cfg.StrictEscapes = c.v.GetBool(keyStrict)
	cfg.CaptureFile = c.v.GetString(keyCapture)
	cfg.CaptureFormat = format
	cfg.DebugLog = c.v.GetString(keyDebugLog)
	cfg.Verbose = c.v.GetBool(keyVerbose)
	return cfg, nil
}
