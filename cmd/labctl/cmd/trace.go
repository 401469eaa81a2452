package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/trace"
)

var traceSession string

var traceCmd = &cobra.Command{
	Use:   "trace FILE",
	Short: "Print a recorded transport trace",
	Long: `Decode a CBOR trace written with --trace and print one line per
exchange: time, session, operation, request and reply.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVar(&traceSession, "session", "", "Only show events of this session ID (prefix match)")
	traceCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: text, json or yaml")
}

type eventView struct {
	Time     time.Time `json:"time" yaml:"time"`
	Session  string    `json:"session" yaml:"session"`
	Link     string    `json:"link" yaml:"link"`
	Address  string    `json:"address,omitempty" yaml:"address,omitempty"`
	Op       string    `json:"op" yaml:"op"`
	Request  string    `json:"request,omitempty" yaml:"request,omitempty"`
	Response string    `json:"response,omitempty" yaml:"response,omitempty"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	Duration string    `json:"duration" yaml:"duration"`
}

func runTrace(cmd *cobra.Command, args []string) error {
	format, err := resultFormat()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var views []eventView
	err = trace.Each(f, func(ev trace.Event) error {
		if traceSession != "" && !strings.HasPrefix(ev.Session, traceSession) {
			return nil
		}
		v := eventView{
			Time:     ev.Timestamp,
			Session:  ev.Session,
			Link:     ev.Link,
			Address:  ev.Address,
			Op:       ev.Op.String(),
			Request:  ev.Request,
			Response: ev.Response,
			Error:    ev.Error,
			Duration: ev.Duration.String(),
		}
		if format == formatText {
			fmt.Println(v.line())
			return nil
		}
		views = append(views, v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	if format != formatText {
		return encode(os.Stdout, format, views)
	}
	return nil
}

func (v eventView) line() string {
	sess := v.Session
	if len(sess) > 8 {
		sess = sess[:8]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %-5s %s %s", v.Time.Format("15:04:05.000"), sess, v.Op, v.Link, v.Address)
	if v.Request != "" {
		fmt.Fprintf(&b, " > %q", v.Request)
	}
	if v.Response != "" {
		fmt.Fprintf(&b, " < %q", v.Response)
	}
	if v.Error != "" {
		fmt.Fprintf(&b, " ! %s", v.Error)
	}
	fmt.Fprintf(&b, " (%s)", v.Duration)
	return b.String()
}
