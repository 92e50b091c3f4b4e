package models

import (
	"strings"
	"time"
)

// Federation list entry kinds. A block entry is the bare target (a
// domain or user@domain); allow entries are namespaced "allow:<target>"
// to keep the two lists distinct in one table.
const (
	FederationEntryBlock = "block"
	FederationEntryAllow = "allow"
)

// FederationEntryText renders the stored row text for a list entry.
func FederationEntryText(kind, target string) string {
	if kind == FederationEntryAllow {
		return FederationEntryAllow + ":" + target
	}
	return target
}

// Federation policies.
const (
	FederationPolicyOpen      = "open"
	FederationPolicyClosed    = "closed"
	FederationPolicyAllowlist = "allowlist"
)

// FederationEntry is one row of the block/allow list.
type FederationEntry struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Entry     string    `gorm:"uniqueIndex;not null;size:255" json:"entry"`
	Reason    string    `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for FederationEntry.
func (FederationEntry) TableName() string {
	return "federation_list"
}

// Kind returns the entry prefix ("block" or "allow") and the target.
func (f *FederationEntry) Kind() (kind, target string) {
	kind, target, ok := strings.Cut(f.Entry, ":")
	if !ok {
		return FederationEntryBlock, f.Entry
	}
	return kind, target
}

// FederationNonce records a consumed request nonce. The primary key
// makes the insert the atomic claim: a second insert of the same nonce
// fails, which is how replays are detected across processes.
type FederationNonce struct {
	Nonce     string    `gorm:"primaryKey;size:255" json:"nonce"`
	SeenAt    time.Time `gorm:"autoCreateTime" json:"seen_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// TableName returns the table name for FederationNonce.
func (FederationNonce) TableName() string {
	return "federation_nonces"
}

// FederationPresenceSub is a remote server's standing subscription to
// presence changes of a local user.
type FederationPresenceSub struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Domain      string `gorm:"not null;size:255;uniqueIndex:uq_presence_sub" json:"domain"`
	UserAddress string `gorm:"not null;size:255;uniqueIndex:uq_presence_sub" json:"user_address"`
}

// TableName returns the table name for FederationPresenceSub.
func (FederationPresenceSub) TableName() string {
	return "federation_presence_subs"
}
