package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/records"
)

var (
	dictData string
	dictOut  string
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Export one vocabulary file per entity type from the data file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		path := cfg.DataFile
		if dictData != "" {
			path = dictData
		}
		n, rs, err := records.LoadFile(ctx, path, log)
		if err != nil {
			return err
		}
		paths, err := records.WriteDictionaries(dictOut, n)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(color.GreenString("File: %s", p))
		}
		fmt.Printf("%d records, %d malformed lines\n", n.Stats.Records, rs.Malformed)
		return nil
	},
}

func init() {
	dictCmd.Flags().StringVarP(&dictData, "data", "d", "", "JSONL data file (default MEDKG_DATA)")
	dictCmd.Flags().StringVarP(&dictOut, "out", "o", "./dict", "Output directory")
}
