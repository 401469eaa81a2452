package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/command"
	"github.com/OpenTraceLab/labctl/pkg/session"
)

var (
	commands     []string
	scriptPath   string
	outputFormat string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-m COMMAND]... [COMMAND]...",
	Short: "Run driver methods against an instrument",
	Long: `Open the instrument, run each command in order and close it again.

A command is a method path followed by its arguments, separated by commas:
  I.channel1.frequency,1000        positional argument
  I.channel1.frequency,freq=1000   keyword argument
  I.shape,[1, 2.5, "x"]            list literal

Arguments that read as numbers, True/False/None, quoted strings, lists or
dicts are converted before the call; anything else is passed as text. The
run stops at the first failing command.`,
	Example: `  labctl run -d Keysight33500B -l SIM -i 0 -m I.identify
  labctl run -d psu -m I.source_voltage,5 -m I.output,True -m I.measure
  labctl run -d scope --script setup.cmd --format json`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addTargetFlags(runCmd)
	runCmd.Flags().StringArrayVarP(&commands, "command", "m", nil,
		"Command to run, e.g. I.channel1.frequency,freq=1000 (repeatable)")
	runCmd.Flags().StringVar(&scriptPath, "script", "",
		"File with one command per line; # starts a comment")
	runCmd.Flags().StringVar(&outputFormat, "format", "",
		"Output format: text, json or yaml (default from config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	tokens, err := collectTokens(scriptPath, append(append([]string(nil), commands...), args...))
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return errors.New("no commands given (use -m or --script)")
	}
	format, err := resultFormat()
	if err != nil {
		return err
	}

	opts, done, err := sessionOptions()
	if err != nil {
		return err
	}
	defer done()
	opts.Commands = tokens

	rep, err := session.Run(cmd.Context(), opts)
	logger.Debug("run finished", "session", rep.ID, "results", len(rep.Results), "elapsed", rep.Elapsed)
	if perr := printResults(rep.Results, format); perr != nil && err == nil {
		err = perr
	}
	return err
}

// collectTokens parses the script, if any, followed by lines.
func collectTokens(script string, lines []string) ([]command.Token, error) {
	var tokens []command.Token
	if script != "" {
		fromScript, err := readScript(script)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, fromScript...)
	}
	for _, l := range lines {
		tok, err := command.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", l, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func readScript(path string) ([]command.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tokens []command.Token
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tok, err := command.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		tokens = append(tokens, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return tokens, nil
}
