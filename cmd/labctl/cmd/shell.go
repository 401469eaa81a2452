package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/command"
	"github.com/OpenTraceLab/labctl/pkg/session"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an instrument and run commands interactively",
	Long: `Open the instrument once and read commands from the terminal until exit.
Several commands may share a line, separated by spaces; quote a command that
contains spaces. Failed commands are reported and the session stays open.`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
	addTargetFlags(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	opts, done, err := sessionOptions()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	s, err := session.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	items := make([]readline.PrefixCompleterInterface, 0, s.Catalog().Len()+4)
	for _, p := range s.Catalog().Paths() {
		items = append(items, readline.PcItem(p))
	}
	for _, b := range []string{"help", "methods", "exit"} {
		items = append(items, readline.PcItem(b))
	}

	name := opts.Target.Driver
	if opts.Target.Nickname != "" {
		name = opts.Target.Nickname
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          name + "> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Connected to %s over %s %s. Type help for help.\n",
		opts.Target.Driver, opts.Target.Link, opts.Target.Address)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		if quit := shellLine(ctx, s, line, rl.Stdout()); quit {
			return nil
		}
	}
}

// shellLine handles one line of input and reports whether the user asked to
// leave.
func shellLine(ctx context.Context, s *session.Session, line string, w io.Writer) bool {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return false
	case "exit", "quit":
		return true
	case "help", "?":
		fmt.Fprintln(w, `Commands:
  I.<method>[,arg...]        call a method, e.g. I.channel1.frequency,freq=1000
  methods                    list every method with its parameters
  help                       show this text
  exit                       close the instrument and leave`)
		return false
	case "methods":
		cat := s.Catalog()
		for _, p := range cat.Paths() {
			m, _ := cat.Lookup(p)
			fmt.Fprintln(w, m.Signature())
		}
		return false
	}

	words, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintln(w, errorStyle.Render("error:"), err)
		return false
	}
	for _, word := range words {
		tok, err := command.Parse(word)
		if err == nil {
			var res *command.Result
			res, err = s.Exec(ctx, tok)
			if err == nil && len(res.Values) > 0 {
				fmt.Fprintln(w, formatValues(res.Values))
			}
		}
		if err != nil {
			fmt.Fprintln(w, errorStyle.Render("error:"), err)
			return false
		}
	}
	return false
}
