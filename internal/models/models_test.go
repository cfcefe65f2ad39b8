// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

package models

import (
	"strings"
	"testing"
	"time"
)

func TestComputeFingerprintStable(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	e1 := Event{UserID: "u1", EventName: "page_view", Timestamp: ts, OrgID: "org1", ProjectID: "proj1"}
	e2 := Event{UserID: "u1", EventName: "page_view", Timestamp: ts, OrgID: "org1", ProjectID: "proj1",
		Properties: Properties{"path": "/home"}, SessionID: "s1"}

	if e1.ComputeFingerprint() != e2.ComputeFingerprint() {
		t.Error("fingerprint should ignore properties and optional fields")
	}
	if len(e1.ComputeFingerprint()) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(e1.ComputeFingerprint()))
	}
}

func TestComputeFingerprintDistinguishes(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	base := Event{UserID: "u1", EventName: "page_view", Timestamp: ts, OrgID: "org1", ProjectID: "proj1"}

	variants := []Event{
		{UserID: "u2", EventName: "page_view", Timestamp: ts, OrgID: "org1", ProjectID: "proj1"},
		{UserID: "u1", EventName: "click", Timestamp: ts, OrgID: "org1", ProjectID: "proj1"},
		{UserID: "u1", EventName: "page_view", Timestamp: ts.Add(time.Millisecond), OrgID: "org1", ProjectID: "proj1"},
		{UserID: "u1", EventName: "page_view", Timestamp: ts, OrgID: "org2", ProjectID: "proj1"},
		{UserID: "u1", EventName: "page_view", Timestamp: ts, OrgID: "org1", ProjectID: "proj2"},
	}

	for i, v := range variants {
		if v.ComputeFingerprint() == base.ComputeFingerprint() {
			t.Errorf("variant %d should have a different fingerprint", i)
		}
	}
}

func TestTenantKey(t *testing.T) {
	if got := TenantKey("org1", "proj1"); got != "org1:proj1" {
		t.Errorf("TenantKey = %q, want org1:proj1", got)
	}
}

func TestFunnelInputValidate(t *testing.T) {
	valid := FunnelInput{
		Name: "checkout",
		Steps: []FunnelStep{
			{EventName: "page_view"},
			{EventName: "purchase", TimeWindow: 3600},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid funnel rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*FunnelInput)
	}{
		{"empty name", func(f *FunnelInput) { f.Name = "" }},
		{"name too long", func(f *FunnelInput) { f.Name = strings.Repeat("x", 256) }},
		{"one step", func(f *FunnelInput) { f.Steps = f.Steps[:1] }},
		{"eleven steps", func(f *FunnelInput) {
			f.Steps = nil
			for i := 0; i < 11; i++ {
				f.Steps = append(f.Steps, FunnelStep{EventName: strings.Repeat("a", i+1)})
			}
		}},
		{"duplicate step names", func(f *FunnelInput) {
			f.Steps = []FunnelStep{{EventName: "a"}, {EventName: "a"}}
		}},
		{"empty step name", func(f *FunnelInput) { f.Steps[0].EventName = "" }},
		{"negative time window", func(f *FunnelInput) { f.Steps[1].TimeWindow = -1 }},
		{"bad step filter", func(f *FunnelInput) {
			f.Steps[0].Filters = &Filter{Op: "bogus"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			f.Steps = append([]FunnelStep(nil), valid.Steps...)
			tt.mutate(&f)
			if err := f.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(`{"op":"and","filters":[{"op":"eq","field":"plan","value":"pro"}]}`)
	if err != nil {
		t.Fatalf("ParseFilter error: %v", err)
	}
	if f.Op != FilterAnd || len(f.Filters) != 1 {
		t.Errorf("unexpected parsed filter: %+v", f)
	}

	if _, err := ParseFilter(`{"op":"regex","field":"x","pattern":"["}`); err == nil {
		t.Error("expected error for invalid regex pattern")
	}
	if _, err := ParseFilter(`{"op":"nope"}`); err == nil {
		t.Error("expected error for unknown op")
	}
	if f, err := ParseFilter(""); err != nil || f != nil {
		t.Errorf("empty filter should parse to nil, got %v, %v", f, err)
	}
}

func TestAPIKeyHasPermission(t *testing.T) {
	admin := APIKey{Permissions: []Permission{PermissionAdmin}}
	for _, p := range []Permission{PermissionRead, PermissionWrite, PermissionAnalytics, PermissionAdmin} {
		if !admin.HasPermission(p) {
			t.Errorf("admin key should grant %s", p)
		}
	}

	reader := APIKey{Permissions: []Permission{PermissionRead}}
	if !reader.HasPermission(PermissionRead) {
		t.Error("read key should grant read")
	}
	if reader.HasPermission(PermissionWrite) {
		t.Error("read key should not grant write")
	}
}

func TestAPIKeyInputValidate(t *testing.T) {
	valid := APIKeyInput{
		Name:        "dashboard",
		OrgID:       "org1",
		Permissions: []Permission{PermissionRead, PermissionAnalytics},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid key input rejected: %v", err)
	}

	bad := valid
	bad.Permissions = []Permission{"superuser"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown permission")
	}

	empty := valid
	empty.Permissions = nil
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty permissions")
	}
}

func TestPropertiesSerializedSize(t *testing.T) {
	var empty Properties
	if n, err := empty.SerializedSize(); err != nil || n != 0 {
		t.Errorf("empty properties size = %d, %v; want 0, nil", n, err)
	}

	props := Properties{"key": "value"}
	n, err := props.SerializedSize()
	if err != nil {
		t.Fatalf("SerializedSize error: %v", err)
	}
	if n != len(`{"key":"value"}`) {
		t.Errorf("size = %d, want %d", n, len(`{"key":"value"}`))
	}
}

func TestValidInterval(t *testing.T) {
	for _, ok := range []string{"hourly", "daily", "weekly", "monthly"} {
		if !ValidInterval(ok) {
			t.Errorf("ValidInterval(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"", "yearly", "Daily"} {
		if ValidInterval(bad) {
			t.Errorf("ValidInterval(%q) = true, want false", bad)
		}
	}
}
