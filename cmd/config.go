package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"serterm/pkg/config"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage saved serial port profiles",
		Long: `Manage saved serial port profiles.

A profile stores a port together with its line settings so that
'serterm <profile>' connects without repeating the flags.`,
		Aliases: []string{"profile"},
	}

	cmd.AddCommand(c.configSaveCmd())
	cmd.AddCommand(c.configLoadCmd())
	cmd.AddCommand(c.configListCmd())
	cmd.AddCommand(c.configShowCmd())
	cmd.AddCommand(c.configDeleteCmd())
	return cmd
}

func (c *cli) configSaveCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "save <name> <port>",
		Short: "Save a serial port profile",
		Long: `Save a port and the serial flags given on the command line as a profile.

Example:
  serterm config save mydevice /dev/ttyUSB0 -b 9600 -p even`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, port := args[0], args[1]

			cfg, err := c.serialConfig(port)
			if err != nil {
				return err
			}
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.Save(name, cfg); err != nil {
				return fmt.Errorf("failed to save profile '%s': %w", name, err)
			}
			if description != "" {
				if err := store.SetDescription(name, description); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile '%s' saved.\n", name)
			fmt.Fprintf(out, "  Port:     %s\n", cfg.Port)
			fmt.Fprintf(out, "  Settings: %s\n", cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "free form description")
	return cmd
}

func (c *cli) configLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <name>",
		Short: "Connect using a saved profile",
		Long: `Load a saved profile and connect to its port.

Example:
  serterm config load mydevice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			cfg, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if cfg, err = c.override(cmd, cfg); err != nil {
				return err
			}
			return c.start(cmd, cfg)
		},
	}
}

func (c *cli) configListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List saved profiles",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			profiles, err := store.List()
			if err != nil {
				return err
			}
			printProfiles(cmd.OutOrStdout(), profiles)
			return nil
		},
	}
}

func printProfiles(w io.Writer, profiles []config.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No saved profiles found.")
		fmt.Fprintln(w, hintStyle.Render("Use 'serterm config save <name> <port>' to save one."))
		return
	}

	fmt.Fprintf(w, "Found %d saved profile(s):\n\n", len(profiles))

	rows := [][]string{{"Name", "Port", "Settings", "Last used"}}
	for _, p := range profiles {
		rows = append(rows, []string{p.Name, p.Config.Port, p.Config.String(), formatWhen(p.LastUsedAt)})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprintf("%-*s", widths[j], cell)
		}
		line := strings.Join(cells, "  ")
		if i == 0 {
			fmt.Fprintln(w, headerStyle.Render(line))
		} else {
			fmt.Fprintln(w, cellStyle.Render(line))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, hintStyle.Render("Use 'serterm <name>' to connect using a profile."))
}

func (c *cli) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show details of a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			p, err := store.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("Profile: "+p.Name))
			fmt.Fprintf(out, "Port:         %s\n", p.Config.Port)
			fmt.Fprintf(out, "Baud Rate:    %d\n", p.Config.BaudRate)
			fmt.Fprintf(out, "Data Bits:    %d\n", p.Config.DataBits)
			fmt.Fprintf(out, "Parity:       %s\n", p.Config.Parity)
			fmt.Fprintf(out, "Stop Bits:    %d\n", p.Config.StopBits)
			fmt.Fprintf(out, "Flow Control: %s\n", p.Config.FlowControl)
			if p.Description != "" {
				fmt.Fprintf(out, "Description:  %s\n", p.Description)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Created:      %s\n", p.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Last Used:    %s\n", formatWhen(p.LastUsedAt))
			return nil
		},
	}
}

func (c *cli) configDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Short:   "Delete a saved profile",
		Aliases: []string{"rm", "remove"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted.\n", args[0])
			return nil
		},
	}
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04")
}
