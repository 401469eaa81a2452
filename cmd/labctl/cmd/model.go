package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/session"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Show the variables and actions a driver describes",
	Long: `Print the driver model: the settable variables, actions and submodules a
driver advertises for front ends, each mapped to the command paths that read
or write it.`,
	RunE: runModel,
}

func init() {
	rootCmd.AddCommand(modelCmd)
	addTargetFlags(modelCmd)
	modelCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: text, json or yaml")
}

func runModel(cmd *cobra.Command, args []string) error {
	format, err := resultFormat()
	if err != nil {
		return err
	}
	opts, done, err := sessionOptions()
	if err != nil {
		return err
	}
	defer done()

	s, err := session.Open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	m, ok := s.Instance().(instrument.Modeler)
	if !ok {
		return fmt.Errorf("driver %s does not describe a model", opts.Target.Driver)
	}
	elems := m.DriverModel()
	if format != formatText {
		return encode(os.Stdout, format, elems)
	}

	rows := make([][]string, len(elems))
	for i, e := range elems {
		rows[i] = []string{string(e.Kind), e.Name, dash(e.Read), dash(e.Write), dash(e.Unit)}
	}
	fmt.Println(renderTable([]string{"KIND", "NAME", "READ", "WRITE", "UNIT"}, rows))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
