package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/session"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the methods a driver instance accepts",
	Long: `Open the instrument and print every command path its driver exposes,
with parameter names where the driver declares them. Use the simulator link
to browse a driver without hardware:

  labctl methods -d Keysight33500B -l SIM -i 0`,
	RunE: runMethods,
}

func init() {
	rootCmd.AddCommand(methodsCmd)
	addTargetFlags(methodsCmd)
}

func runMethods(cmd *cobra.Command, args []string) error {
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

	cat := s.Catalog()
	for _, p := range cat.Paths() {
		m, _ := cat.Lookup(p)
		fmt.Println(m.Signature())
	}
	return nil
}
