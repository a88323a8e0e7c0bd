package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireInputDir accepts exactly one positional argument, the input directory.
// Error prefixes match what ExitCodeForError classifies as usage errors.
func RequireInputDir(cmd *cobra.Command, args []string) error {
	switch n := len(args); {
	case n == 0:
		return fmt.Errorf("missing required argument: <input_dir>\n\nUsage: %s\n\nExample:\n  %s ./wid_all_data -d wid",
			cmd.UseLine(), cmd.CommandPath())
	case n > 1:
		return fmt.Errorf("accepts 1 arg(s), received %d", n)
	}
	return nil
}
