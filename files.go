/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"

	"github.com/Seednode/kamikaze/games/kamikaze"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// loadContent reads the challenge file given by --catalog, or falls back to
// the built-in set.
func loadContent(cfg *Config) (kamikaze.Content, error) {
	if cfg.catalog == "" {
		return kamikaze.DefaultContent()
	}

	data, err := os.ReadFile(cfg.catalog)
	if err != nil {
		return kamikaze.Content{}, fmt.Errorf("read catalog: %w", err)
	}

	catalog, chaos, err := kamikaze.ParseContent(data)
	if err != nil {
		return kamikaze.Content{}, fmt.Errorf("%s: %w", cfg.catalog, err)
	}

	logf(cfg, "START: Loaded %d challenges and %d chaos events from %s (%s)",
		len(catalog), len(chaos), cfg.catalog, humanReadableSize(int64(len(data))))

	return kamikaze.Content{Catalog: catalog, Chaos: chaos}, nil
}
