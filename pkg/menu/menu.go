// Package menu holds the access policy shared by interactive message menus:
// who may drive a menu and how long it waits for them.
package menu

import (
	"context"
	"time"

	"github.com/sipeed/picopager/pkg/logger"
)

// RoleResolver looks up the role IDs a user holds within a guild.
type RoleResolver interface {
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)
}

type Menu struct {
	users   map[string]struct{}
	roles   map[string]struct{}
	timeout time.Duration
}

func New(users, roles []string, timeout time.Duration) *Menu {
	return &Menu{
		users:   toSet(users),
		roles:   toSet(roles),
		timeout: timeout,
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (m *Menu) Timeout() time.Duration {
	return m.timeout
}

// Open reports whether anyone may interact with the menu.
func (m *Menu) Open() bool {
	return len(m.users) == 0 && len(m.roles) == 0
}

// IsAuthorized reports whether userID may interact. Role membership is only
// resolvable inside a guild; lookup failures count as not authorized.
func (m *Menu) IsAuthorized(ctx context.Context, resolver RoleResolver, userID, guildID string) bool {
	if m.Open() {
		return true
	}
	if _, ok := m.users[userID]; ok {
		return true
	}
	if len(m.roles) == 0 || guildID == "" || resolver == nil {
		return false
	}

	roles, err := resolver.MemberRoles(ctx, guildID, userID)
	if err != nil {
		logger.DebugCF("menu", "Role lookup failed", map[string]any{
			"guild_id": guildID,
			"user_id":  userID,
			"error":    err.Error(),
		})
		return false
	}
	for _, r := range roles {
		if _, ok := m.roles[r]; ok {
			return true
		}
	}
	return false
}
