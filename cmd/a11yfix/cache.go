package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/a11yfix/dbopen"
	"github.com/hazyhaar/a11yfix/describe"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and fill the image description cache",
}

func init() {
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "get <ref>",
		Short: "Print the cached description of an image reference",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheGet,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "put <ref> <description>",
		Short: "Store a description; an existing one is kept",
		Args:  cobra.ExactArgs(2),
		RunE:  runCachePut,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "import <cache.json>",
		Short: "Import a JSON cache file into the SQLite cache",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheImport,
	})
}

// withCache opens the configured cache, runs fn, then flushes or closes it.
func withCache(cmd *cobra.Command, fn func(describe.Cache) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.CachePath == "" {
		return errors.New("cache_path is not configured")
	}
	cache, closeCache, err := openCache(cfg.CachePath, dbopen.WithSynchronous(cfg.SQLiteSynchronous))
	if err != nil {
		return err
	}
	err = fn(cache)
	if cerr := closeCache(); err == nil {
		err = cerr
	}
	return err
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	return withCache(cmd, func(c describe.Cache) error {
		d, ok, err := c.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no description for %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), d)
		return nil
	})
}

func runCachePut(cmd *cobra.Command, args []string) error {
	return withCache(cmd, func(c describe.Cache) error {
		return c.Store(cmd.Context(), args[0], args[1])
	})
}

func runCacheImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	entries, err := describe.DecodeJSON(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	return withCache(cmd, func(c describe.Cache) error {
		s, ok := c.(*describe.SQLite)
		if !ok {
			return errors.New("import needs an SQLite cache_path")
		}
		n, err := s.Import(cmd.Context(), entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d descriptions\n", n, len(entries))
		return nil
	})
}
