package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/index"
)

var indexCmd = &cobra.Command{
	Use:   "index [NICKNAME]",
	Short: "Show the device index",
	Long: `Print the entries of the device index, or one entry when NICKNAME is
given. The index is an INI file; each section names an instrument:

  [psu]
  driver = Keithley2400
  connection = GPIB
  address = 24

The file comes from --index, or the config's index setting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: text, json or yaml")
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := resultFormat()
	if err != nil {
		return err
	}
	if cfg.IndexPath == "" {
		return fmt.Errorf("no device index configured (use --index)")
	}
	idx, err := index.Load(cfg.IndexPath)
	if err != nil {
		return err
	}

	entries := idx.Entries()
	if len(args) == 1 {
		e, ok := idx.Resolve(args[0])
		if !ok {
			return fmt.Errorf("%s has no entry [%s] (entries: %s)",
				cfg.IndexPath, args[0], strings.Join(idx.Names(), ", "))
		}
		entries = []index.Entry{e}
	}
	if format != formatText {
		return encode(os.Stdout, format, entries)
	}

	if len(entries) == 0 {
		fmt.Printf("%s has no entries.\n", cfg.IndexPath)
		return nil
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		params := make([]string, 0, len(e.Params))
		for _, k := range e.ParamKeys() {
			params = append(params, k+"="+e.Params[k])
		}
		rows[i] = []string{e.Name, e.Driver, e.Connection, e.Address, dash(strings.Join(params, " "))}
	}
	fmt.Println(renderTable([]string{"NICKNAME", "DRIVER", "LINK", "ADDRESS", "PARAMS"}, rows))
	return nil
}
