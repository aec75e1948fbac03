package interfaces

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Domain represents a fully qualified domain name owned by a hosting account.
type Domain string

var domainRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// NewDomain creates a new domain name with validation.
func NewDomain(domain string) (Domain, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if !domainRegex.MatchString(domain) {
		return Domain(""), &ValidationError{Field: "domain", Reason: "invalid domain name format"}
	}
	return Domain(domain), nil
}

// String returns the domain name as a string.
func (d Domain) String() string {
	return string(d)
}

// Validate checks if the domain name has a valid format.
func (d Domain) Validate() error {
	_, err := NewDomain(string(d))
	return err
}

// Username represents a Linux system account name.
type Username string

var usernameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// NewUsername creates a new system username with validation.
func NewUsername(name string) (Username, error) {
	if !usernameRegex.MatchString(name) {
		return Username(""), &ValidationError{Field: "username", Reason: "invalid system username"}
	}
	return Username(name), nil
}

// String returns the username as a string.
func (u Username) String() string {
	return string(u)
}

// Validate checks if the username has a valid format.
func (u Username) Validate() error {
	_, err := NewUsername(string(u))
	return err
}

// UsernameForDomain derives a system username from a domain name,
// e.g. "example.com" becomes "example". The result is truncated and
// sanitized to satisfy useradd constraints.
func UsernameForDomain(d Domain) Username {
	name := string(d)
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(name))
	if name == "" || (name[0] >= '0' && name[0] <= '9') || name[0] == '-' {
		name = "u" + name
	}
	if len(name) > 32 {
		name = name[:32]
	}
	return Username(name)
}

// Token is an encrypted credential as produced by the vault. It is opaque
// to every component except the vault itself.
type Token string

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// NotificationType classifies a notification for the consuming client.
type NotificationType string

// Notification types understood by the frontend.
const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is an ephemeral message delivered to a user's active
// session queues. It is not persisted once consumed.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	UserID    uint             `json:"user_id,omitempty"`
	Global    bool             `json:"global,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Publisher delivers notifications to active sessions. Implemented by
// notify.Broker; the orchestrator depends only on this capability.
type Publisher interface {
	Publish(n Notification)
}

// CredentialVault encrypts and decrypts secrets stored at rest.
// Only the vault may decrypt a token; callers treat tokens as opaque.
type CredentialVault interface {
	Encrypt(plaintext []byte) (Token, error)
	Decrypt(token Token) ([]byte, error)
}
