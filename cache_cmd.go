package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the synthesized audio cache",
	Args:  cobra.NoArgs,
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where the audio cache lives and how full it is",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := openCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		return printCacheInfo(cmd.OutOrStdout(), cfg.Cache, c.Stats())
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached audio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := openCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		before := c.Stats()
		if err := c.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items (%s) from %s\n",
			before.ItemCount, humanize.IBytes(uint64(max(before.Size, 0))), c.Dir()) //nolint:gosec
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
}

func openCache(cfg tts.CacheConfig) (*cache.DiskCache, error) {
	dir, err := engines.CacheDir(cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	c, err := cache.Open(dir, cfg.MaxSize, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return c, nil
}

func printCacheInfo(w io.Writer, cfg tts.CacheConfig, st cache.Stats) error {
	enabled := "enabled"
	if !cfg.Enabled {
		enabled = "disabled"
	}

	capacity := "unlimited"
	if st.Capacity > 0 {
		capacity = humanize.IBytes(uint64(st.Capacity)) //nolint:gosec
	}

	lastUsed := "never"
	if !st.LastAccess.IsZero() {
		lastUsed = humanize.Time(st.LastAccess)
	}

	_, err := fmt.Fprintf(w,
		"%s %s\n  items:        %s\n  size:         %s of %s\n  uncompressed: %s (%.1fx)\n  last used:    %s\n",
		keyword("Audio cache"), enabled,
		humanize.Comma(st.ItemCount),
		humanize.IBytes(uint64(max(st.Size, 0))), capacity, //nolint:gosec
		humanize.IBytes(uint64(max(st.Original, 0))), st.Ratio(), //nolint:gosec
		lastUsed,
	)
	if err != nil {
		return err //nolint:wrapcheck
	}
	_, err = fmt.Fprintf(w, "  directory:    %s\n", st.Dir)
	return err //nolint:wrapcheck
}
