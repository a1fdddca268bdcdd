// -- cmd/logs.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hpcloud/tail"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// logHeaderKeys are rendered in front of every formatted line and not repeated
// among the remaining fields.
var logHeaderKeys = map[string]bool{"ts": true, "level": true, "logger": true, "msg": true}

func newLogsCommand(state *appState) *cobra.Command {
	var follow, raw bool
	var file string

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the agent's JSON log file in a readable form",
		Example: `  webpilot logs
  webpilot logs -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				path = state.cfg.Logger.LogFile
			}
			if path == "" {
				return errors.New("file logging is disabled (logger.log_file is empty) and no --file was given")
			}
			err := tailLog(cmd.Context(), cmd.OutOrStdout(), path, follow, raw)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep the file open and print new lines as they are written")
	logsCmd.Flags().BoolVar(&raw, "raw", false, "print lines unmodified")
	logsCmd.Flags().StringVar(&file, "file", "", "log file to read (defaults to logger.log_file)")
	return logsCmd
}

// tailLog copies the log at path to w. Without follow it stops at the end of
// the file.
func tailLog(ctx context.Context, w io.Writer, path string, follow, raw bool) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read log file: %w", line.Err)
			}
			text := line.Text
			if !raw {
				text = formatLogLine(text)
			}
			fmt.Fprintln(w, text)
		}
	}
}

// formatLogLine renders one JSON log entry as
// "ts LEVEL logger: msg key=value ...". Lines that are not JSON objects are
// returned unchanged.
func formatLogLine(line string) string {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line
	}

	var b strings.Builder
	for _, key := range []string{"ts", "level"} {
		if v, ok := entry[key]; ok {
			fmt.Fprintf(&b, "%v ", v)
		}
	}
	if name, ok := entry["logger"]; ok {
		fmt.Fprintf(&b, "%v: ", name)
	}
	if msg, ok := entry["msg"]; ok {
		fmt.Fprintf(&b, "%v", msg)
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if !logHeaderKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, formatLogValue(entry[k]))
	}
	return strings.TrimSpace(b.String())
}

func formatLogValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		if strings.ContainsAny(val, " \t\n\"") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
