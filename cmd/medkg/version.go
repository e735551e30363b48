package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/buildinfo"
)

var printAllVersion bool

var versionTemplate = `Version:	  %s
Go version:	  %s
Git commit:	  %s
Built:	          %s
OS/Arch:	  %s/%s
`

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		if printAllVersion {
			fmt.Printf(versionTemplate,
				buildinfo.Version,
				runtime.Version(),
				buildinfo.Revision, buildinfo.BuildDate,
				runtime.GOOS,
				runtime.GOARCH)
			return
		}
		fmt.Println(buildinfo.String())
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&printAllVersion, "all", "", false, "Print all version information")
}
