package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParseAdminIDs parses a comma-separated list of Telegram user ids.
// Blank entries are rejected so a stray comma never silently shrinks the list.
func ParseAdminIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("admin id list is empty")
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		if id <= 0 {
			return nil, fmt.Errorf("invalid admin id %d: must be positive", id)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// IsAdmin reports whether userID is in the operator allow-list.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Telegram.AdminIDs, userID)
}
