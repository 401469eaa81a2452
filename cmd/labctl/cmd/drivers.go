package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
)

var driversCmd = &cobra.Command{
	Use:   "drivers [NAME]",
	Short: "List registered drivers",
	Long: `List every driver on the search path with the connection backends it
offers. With a NAME, show only that driver. Names match case-insensitively
and may be qualified as root/name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDrivers,
}

func init() {
	rootCmd.AddCommand(driversCmd)
	driversCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: text, json or yaml")
}

type driverView struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Backends    []string `json:"backends,omitempty" yaml:"backends,omitempty"`
	Parts       []string `json:"parts,omitempty" yaml:"parts,omitempty"`
}

func viewOf(m *instrument.Module) driverView {
	return driverView{
		ID:          m.ID(),
		Description: m.Description,
		Backends:    m.BackendNames(),
		Parts:       m.PartNames(),
	}
}

func runDrivers(cmd *cobra.Command, args []string) error {
	format, err := resultFormat()
	if err != nil {
		return err
	}

	var mods []*instrument.Module
	if len(args) == 1 {
		m, err := instrument.Default.Locate(args[0])
		if err != nil {
			return err
		}
		mods = []*instrument.Module{m}
	} else {
		mods = instrument.Default.Modules()
	}

	views := make([]driverView, len(mods))
	for i, m := range mods {
		views[i] = viewOf(m)
	}
	if format != formatText {
		return encode(os.Stdout, format, views)
	}

	if len(views) == 0 {
		fmt.Printf("No drivers found in roots %v.\n", instrument.Default.Roots())
		return nil
	}
	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{v.ID, dash(strings.Join(v.Backends, " ")), dash(strings.Join(v.Parts, " ")), v.Description}
	}
	fmt.Println(renderTable([]string{"DRIVER", "BACKENDS", "PARTS", "DESCRIPTION"}, rows))
	return nil
}
