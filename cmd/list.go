package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"serterm/pkg/serial"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("240"))

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (c *cli) listCmd() *cobra.Command {
	var (
		details bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		Long: `List all serial ports on the system. With --details, USB ports show
their vendor and product IDs, serial number and product name.`,
		Aliases: []string{"ls", "ports"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.printPorts(cmd.OutOrStdout(), format, details)
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "show USB details")
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, csv, json)")
	return cmd
}

func (c *cli) printPorts(w io.Writer, format string, details bool) error {
	ports, err := c.listPorts()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}

	switch format {
	case "table":
		return printPortsTable(w, ports, details)
	case "csv":
		return printPortsCSV(w, ports, details)
	case "json":
		return printPortsJSON(w, ports, details)
	default:
		return fmt.Errorf("unsupported format: %q (expected table, csv or json)", format)
	}
}

func printPortsTable(w io.Writer, ports []serial.PortInfo, details bool) error {
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(ports))

	nameWidth := len("Port")
	for _, p := range ports {
		nameWidth = max(nameWidth, len(p.Name))
	}

	if details {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s  %-6s  %s", nameWidth, "Port", "Type", "Description")))
	} else {
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s", nameWidth, "Port")))
	}

	for _, p := range ports {
		row := fmt.Sprintf("%-*s", nameWidth, p.Name)
		if details {
			kind := "native"
			if p.IsUSB {
				kind = "usb"
			}
			row = fmt.Sprintf("%s  %-6s  %s", row, kind, p.Description())
		}
		fmt.Fprintln(w, cellStyle.Render(row))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, hintStyle.Render("Use 'serterm <port>' to connect."))
	return nil
}

func printPortsCSV(w io.Writer, ports []serial.PortInfo, details bool) error {
	out := csv.NewWriter(w)
	if details {
		out.Write([]string{"port", "is_usb", "vid", "pid", "product", "serial_number"})
		for _, p := range ports {
			out.Write([]string{p.Name, strconv.FormatBool(p.IsUSB), p.VID, p.PID, p.Product, p.SerialNumber})
		}
	} else {
		out.Write([]string{"port"})
		for _, p := range ports {
			out.Write([]string{p.Name})
		}
	}
	out.Flush()
	return out.Error()
}

func printPortsJSON(w io.Writer, ports []serial.PortInfo, details bool) error {
	var v any
	if details {
		v = ports
	} else {
		names := make([]string, 0, len(ports))
		for _, p := range ports {
			names = append(names, p.Name)
		}
		v = names
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
