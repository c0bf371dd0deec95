package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roeyazroel/linear-sync/internal/engine"
	"github.com/spf13/cobra"
)

func newCacheCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate the local cache",
	}
	cmd.AddCommand(newCacheClearCmd(get), newCacheKeysCmd(get))
	return cmd
}

func newCacheClearCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [family|prefix]",
		Short: "Clear the whole cache, or the entries under one key family",
		Long: fmt.Sprintf(`Clear the whole cache, or only the entries whose keys start with a prefix.

Known families: %s.
Any other argument is used as a raw key prefix.`, strings.Join(cacheFamilies(), ", ")),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := get().engine
			if len(args) == 0 {
				eng.ClearCache()
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			}
			prefix := cachePrefix(args[0])
			n := eng.InvalidateCache(prefix)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries with prefix %q\n", n, prefix)
			return nil
		},
	}
}

func newCacheKeysCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List cached keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range get().engine.CacheKeys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

// cachePrefix resolves a family name to its key prefix.
func cachePrefix(arg string) string {
	if p, ok := engine.InvalidationPrefixes[arg]; ok {
		return p
	}
	return arg
}

// cacheFamily names the family key belongs to, or returns key itself.
func cacheFamily(key string) string {
	best, bestLen := key, 0
	for name, prefix := range engine.InvalidationPrefixes {
		if strings.HasPrefix(key, prefix) && len(prefix) > bestLen {
			best, bestLen = name, len(prefix)
		}
	}
	return best
}

func cacheFamilies() []string {
	names := make([]string, 0, len(engine.InvalidationPrefixes))
	for name := range engine.InvalidationPrefixes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
