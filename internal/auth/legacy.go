package auth

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vovakirdan/linechat/internal/store"
)

type legacyRecord struct {
	Password string `json:"password"`
	Color    *int   `json:"color"`
}

// ParseLegacyUsers decodes a users file of the form
// {"name": {"password": "<hex sha256>", "color": 6}}.
func ParseLegacyUsers(data []byte) ([]store.User, error) {
	var raw map[string]legacyRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse legacy users: %w", err)
	}

	users := make([]store.User, 0, len(raw))
	for name, rec := range raw {
		if !IsLegacyHash(rec.Password) {
			return nil, fmt.Errorf("parse legacy users: %q has no sha256 password digest", name)
		}
		color := DefaultColor
		if rec.Color != nil {
			color = *rec.Color
		}
		users = append(users, store.User{Username: name, PasswordHash: rec.Password, Color: color})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}
