package profiler

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport prints the fixed-format timing summary followed by the
// per-file diagnostic counts. The layout is an output contract; scripts
// parse it.
func WriteReport(w io.Writer, result *Result) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "TIMING SUMMARY")
	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "  Process spawn:         %8.1fms\n", Millis(result.Spawn))
	fmt.Fprintf(w, "  Initialize response:   %8.1fms\n", Millis(result.InitializeResponse))
	fmt.Fprintf(w, "  Initialized sent:      %8.1fms\n", Millis(result.InitializedSent))
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "  First diagnostic:      %8.1fms\n", Millis(result.FirstDiagnostic))
		fmt.Fprintf(w, "    (from initialized):  %8.1fms\n", Millis(result.FirstFromInitialized))
	}
	if result.Complete {
		fmt.Fprintf(w, "  All files diagnosed:   %8.1fms\n", Millis(result.AllDiagnosed))
	}

	fmt.Fprintln(w, "\nDiagnostics by file:")
	for _, fd := range result.Diagnostics {
		fmt.Fprintf(w, "  %s: %d\n", fd.File, fd.Count)
	}
}
