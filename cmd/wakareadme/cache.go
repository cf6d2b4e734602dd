package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wakareadme/internal/storage"
)

var (
	cachePath  string
	cacheOwner string
	cacheTTL   int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the commit cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewSQLiteStore(cachePath, cacheOwner, 0)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🧹 Cleared cache of %s.\n", cacheOwner)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete entries of every user older than the TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewSQLiteStore(cachePath, cacheOwner, time.Duration(cacheTTL)*24*time.Hour)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🧹 Pruned %d expired entries.\n", n)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cachePath, "path", ".cache/wakareadme.db", "Path to the SQLite cache")
	cacheClearCmd.Flags().StringVar(&cacheOwner, "owner", "", "GitHub login owning the entries")
	_ = cacheClearCmd.MarkFlagRequired("owner")
	cachePruneCmd.Flags().IntVar(&cacheTTL, "ttl-days", 1, "Entries older than this many days are removed")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
