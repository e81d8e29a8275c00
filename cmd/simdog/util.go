package main

import (
	"github.com/dustin/go-humanize"
)

// parseSize parses a human-readable size string into bytes.
// Supports formats: "100", "1K", "1MB", "1GiB", etc.
func parseSize(s string) (uint64, error) {
	return humanize.ParseBytes(s)
}

// shortKey abbreviates long fingerprint keys for display.
func shortKey(key string) string {
	const limit = 16
	if len(key) <= limit {
		return key
	}
	return key[:limit] + "…"
}
