package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and relationship counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeService(svc)

		st, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Nodes: %d\n", st.TotalNodes())
		for _, k := range sortedKeys(st.Nodes) {
			fmt.Printf("  %-12s %d\n", k, st.Nodes[k])
		}
		fmt.Printf("Relationships: %d\n", st.TotalRelationships())
		for _, k := range sortedKeys(st.Relationships) {
			fmt.Printf("  %-16s %d\n", k, st.Relationships[k])
		}
		return nil
	},
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
