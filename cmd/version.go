package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X github.com/abhisek/dsatutor/cmd.version=v1.2.3".
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build details",
	Run: func(cmd *cobra.Command, args []string) {
		b := readBuild()
		fmt.Printf("dsatutor %s\n", b.version)
		if b.commit != "" {
			fmt.Printf("  commit  %s%s\n", b.commit, b.dirty)
		}
		fmt.Printf("  go      %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
	},
}

type buildInfo struct {
	version string
	commit  string
	dirty   string
}

// readBuild prefers the linker-stamped version, then the module version
// recorded by `go install`, and picks up VCS stamping when present.
func readBuild() buildInfo {
	b := buildInfo{version: version}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if b.version == "" {
			b.version = "(devel)"
		}
		return b
	}
	if b.version == "" {
		b.version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.commit = s.Value
			if len(b.commit) > 12 {
				b.commit = b.commit[:12]
			}
		case "vcs.modified":
			if s.Value == "true" {
				b.dirty = " (modified)"
			}
		}
	}
	if b.version == "" {
		b.version = "(devel)"
	}
	return b
}
