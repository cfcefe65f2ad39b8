// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package models

import (
	"fmt"
	"time"
)

// Permission is a capability grantable to an API key.
type Permission string

const (
	PermissionRead      Permission = "read"
	PermissionWrite     Permission = "write"
	PermissionAdmin     Permission = "admin"
	PermissionAnalytics Permission = "analytics"
)

// ValidPermissions is the closed set of grantable permissions.
var ValidPermissions = map[Permission]struct{}{
	PermissionRead:      {},
	PermissionWrite:     {},
	PermissionAdmin:     {},
	PermissionAnalytics: {},
}

// APIKey identifies a tenant caller. The raw key material is returned only
// once at creation; thereafter only its SHA-256 digest is stored and
// compared. ProjectID empty means the key is org-wide.
type APIKey struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	OrgID       string       `json:"orgId"`
	ProjectID   string       `json:"projectId,omitempty"`
	Permissions []Permission `json:"permissions"`
	IsActive    bool         `json:"isActive"`
	LastUsed    *time.Time   `json:"lastUsed,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`

	// Key holds the raw key material. Populated only in the create
	// response; never persisted and never listed.
	Key string `json:"key,omitempty"`

	// KeyDigest is the SHA-256 hex digest used for lookup.
	KeyDigest string `json:"-"`
}

// HasPermission reports whether the key grants p. Admin implies all.
func (k *APIKey) HasPermission(p Permission) bool {
	for _, have := range k.Permissions {
		if have == PermissionAdmin || have == p {
			return true
		}
	}
	return false
}

// APIKeyInput is the create/update request payload.
type APIKeyInput struct {
	Name        string       `json:"name" validate:"required,max=255"`
	OrgID       string       `json:"orgId" validate:"required"`
	ProjectID   string       `json:"projectId,omitempty"`
	Permissions []Permission `json:"permissions" validate:"required,min=1"`
	IsActive    *bool        `json:"isActive,omitempty"`
}

// Validate checks the key payload: name bounds, at least one permission,
// all permissions drawn from the valid set.
func (in *APIKeyInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("key name is required")
	}
	if len(in.Name) > MaxFieldLength {
		return fmt.Errorf("key name exceeds %d characters", MaxFieldLength)
	}
	if in.OrgID == "" {
		return fmt.Errorf("orgId is required")
	}
	if len(in.Permissions) == 0 {
		return fmt.Errorf("at least one permission is required")
	}
	for _, p := range in.Permissions {
		if _, ok := ValidPermissions[p]; !ok {
			return fmt.Errorf("unknown permission %q", p)
		}
	}
	return nil
}

// AuthContext is the resolved identity attached to a request after
// successful authentication.
type AuthContext struct {
	OrgID       string
	ProjectID   string
	KeyID       string
	Permissions []Permission
}

// HasPermission reports whether the context grants p. Admin implies all.
func (a *AuthContext) HasPermission(p Permission) bool {
	for _, have := range a.Permissions {
		if have == PermissionAdmin || have == p {
			return true
		}
	}
	return false
}
