package models

import (
	"strings"
	"time"
)

// Permissions granted to API clients
const (
	PermCoursesRead   = "courses:read"
	PermProgressWrite = "progress:write"
	PermMatchesRead   = "matches:read"
	PermEventsRead    = "events:read"
)

// ApiClient represents an authenticated API client (frontend, recruiter tools)
type ApiClient struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ApiKey      string            `json:"-"` // Never serialize
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	LastUsedAt  *time.Time        `json:"last_used_at,omitempty"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HasPermission checks if client has the required permission.
// "progress:*" grants every progress permission, "*" grants all.
func (c *ApiClient) HasPermission(required string) bool {
	if c == nil || !c.IsActive {
		return false
	}

	resource, _, _ := strings.Cut(required, ":")
	for _, perm := range c.Permissions {
		switch perm {
		case "*", required, resource + ":*":
			return true
		}
	}

	return false
}

// MaskedApiKey returns first 8 characters of API key for logging
func (c *ApiClient) MaskedApiKey() string {
	return MaskKey(c.ApiKey)
}

// MaskKey returns first 8 characters of key for safe logging
func MaskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}
