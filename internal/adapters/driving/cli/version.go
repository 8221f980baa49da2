package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version number. With --verbose, also print the Go toolchain and build commit.",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("druginfo version %s\n", version)
		if !rootFlags.verbose {
			return
		}
		cmd.Printf("go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if rev := vcsRevision(); rev != "" {
			cmd.Printf("commit: %s\n", rev)
		}
	},
}

// vcsRevision returns the commit the binary was built from, if recorded.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
