package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/lectern/internal/config"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local content cache",
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached contents for the configured server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.cfg.CachePath()
			if dir == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled, nothing to clear")
				return nil
			}

			if all {
				// Every server's database, not just the configured one
				if err := config.ClearCache(dir); err != nil {
					return err
				}
				ctx.logger.Info("removed cache directory", "dir", dir)
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared for all servers")
				return nil
			}

			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "Remove the cache of every server")

	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}
