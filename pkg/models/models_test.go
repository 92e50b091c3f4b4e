package models

import (
	"testing"
	"time"
)

func TestUser_GetDisplayName(t *testing.T) {
	tests := []struct {
		name        string
		user        User
		wantDisplay string
	}{
		{"with display name", User{Username: "alice", DisplayName: "Alice A."}, "Alice A."},
		{"without display name", User{Username: "alice"}, "alice"},
		{"empty display name", User{Username: "alice", DisplayName: ""}, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.GetDisplayName(); got != tt.wantDisplay {
				t.Errorf("GetDisplayName() = %q, want %q", got, tt.wantDisplay)
			}
		})
	}
}

func TestUser_Address(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"local user", User{Username: "alice"}, "alice@vox.example"},
		{"federated user", User{Username: "bob", Federated: true, HomeDomain: "remote.example"}, "bob@remote.example"},
		{"federated without domain falls back", User{Username: "carol", Federated: true}, "carol@vox.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Address("vox.example"); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}

	if s.Expired(now) {
		t.Error("session should not be expired before ExpiresAt")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session should be expired after ExpiresAt")
	}
}

func TestRole_IsEveryone(t *testing.T) {
	if !(&Role{Position: 0}).IsEveryone() {
		t.Error("position 0 should be the everyone role")
	}
	if (&Role{Position: 3}).IsEveryone() {
		t.Error("position 3 should not be the everyone role")
	}
}

func TestInvite_Usable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	five := 5

	tests := []struct {
		name    string
		invite  Invite
		wantErr error
	}{
		{"unrestricted", Invite{}, nil},
		{"not yet expired", Invite{ExpiresAt: &future}, nil},
		{"expired", Invite{ExpiresAt: &past}, ErrInviteExpired},
		{"uses remaining", Invite{MaxUses: &five, Uses: 4}, nil},
		{"exhausted", Invite{MaxUses: &five, Uses: 5}, ErrInviteExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.invite.Usable(now); err != tt.wantErr {
				t.Errorf("Usable() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFederationEntry_Kind(t *testing.T) {
	tests := []struct {
		entry      string
		wantKind   string
		wantTarget string
	}{
		{"bad.example", "block", "bad.example"},
		{"allow:good.example", "allow", "good.example"},
		{"user@bad.example", "block", "user@bad.example"},
		{"block:legacy.example", "block", "legacy.example"}, // pre-rename rows still parse
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			e := FederationEntry{Entry: tt.entry}
			kind, target := e.Kind()
			if kind != tt.wantKind || target != tt.wantTarget {
				t.Errorf("Kind() = (%q, %q), want (%q, %q)", kind, target, tt.wantKind, tt.wantTarget)
			}
		})
	}
}

func TestGenerateRandomPassword(t *testing.T) {
	p1, err := GenerateRandomPassword()
	if err != nil {
		t.Fatalf("GenerateRandomPassword() error = %v", err)
	}
	if len(p1) != 24 {
		t.Errorf("password length = %d, want 24", len(p1))
	}

	p2, err := GenerateRandomPassword()
	if err != nil {
		t.Fatalf("GenerateRandomPassword() error = %v", err)
	}
	if p1 == p2 {
		t.Error("two generated passwords should differ")
	}
}

func TestIsAdminUsername(t *testing.T) {
	if !IsAdminUsername("admin") {
		t.Error("admin should be the admin username")
	}
	if IsAdminUsername("Admin") || IsAdminUsername("alice") {
		t.Error("only the exact reserved name is admin")
	}
}
