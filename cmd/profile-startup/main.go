// Command profile-startup measures raven's LSP cold-start latency. It
// simulates an editor opening a workspace and specific files, timestamping
// every milestone from spawn until diagnostics arrive for all of them.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/jbearak/Rlsp/internal/profiler"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		serverPath  string
		workspace   string
		files       []string
		languageID  string
		initTimeout time.Duration
		diagTimeout time.Duration
		verbosity   int
	)

	cmd := &cobra.Command{
		Use:     "profile-startup",
		Short:   "Measure raven LSP cold-start latency",
		Version: version,
		Long: `Measure raven LSP cold-start latency.

Launches the raven language server over stdio, runs the initialize
handshake, opens the given workspace files, and reports when the first and
last diagnostics arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Failures past this point are runtime conditions, not usage
			// mistakes.
			cmd.SilenceUsage = true
			commonlog.Configure(verbosity, nil)

			binary, err := expandPath(serverPath)
			if err != nil {
				return err
			}
			root, err := expandPath(workspace)
			if err != nil {
				return err
			}

			open := make([]string, 0, len(files))
			for _, f := range files {
				if !filepath.IsAbs(f) {
					f = filepath.Join(root, f)
				}
				open = append(open, f)
			}

			result, err := profiler.Run(profiler.Config{
				ServerPath:         binary,
				Workspace:          root,
				Files:              open,
				LanguageID:         languageID,
				InitializeTimeout:  initTimeout,
				DiagnosticsTimeout: diagTimeout,
			})
			if err != nil {
				return err
			}

			profiler.WriteReport(os.Stdout, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverPath, "server", "~/repos/raven/target/release/raven",
		"path to the raven binary")
	cmd.Flags().StringVar(&workspace, "workspace", "~/repos/worldwide",
		"workspace root to point the server at")
	cmd.Flags().StringSliceVar(&files, "file", []string{"oos.r", "validation_functions/collate.r"},
		"file to open, relative to the workspace (repeatable)")
	cmd.Flags().StringVar(&languageID, "language-id", "r",
		"language identifier declared on didOpen")
	cmd.Flags().DurationVar(&initTimeout, "init-timeout", 30*time.Second,
		"how long to wait for the initialize response")
	cmd.Flags().DurationVar(&diagTimeout, "diag-timeout", 30*time.Second,
		"how long to wait for diagnostics after opening files")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v",
		"increase log verbosity (repeatable)")

	return cmd
}

// expandPath resolves a leading ~/ against the user's home directory and
// makes the result absolute.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}
