package store

import (
	"time"
)

// SignupStatus is the approval state of a hosting account request.
type SignupStatus string

// Signup request states. Pending transitions to approved or rejected,
// never back.
const (
	SignupPending  SignupStatus = "pending"
	SignupApproved SignupStatus = "approved"
	SignupRejected SignupStatus = "rejected"
)

// User is a panel account. Resource entities reference their owning user.
type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email        string    `gorm:"size:255" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EmailFeature is the optional mailbox sub-record of a signup request.
// Its absence means email hosting was not requested.
type EmailFeature struct {
	ID              uint   `gorm:"primarykey" json:"-"`
	SignupRequestID uint   `gorm:"uniqueIndex;not null" json:"-"`
	Username        string `gorm:"size:64;not null" json:"username"`
	QuotaMB         int    `json:"quota_mb"`
	PasswordToken   string `gorm:"size:512" json:"-"`
}

// DatabaseFeature is the optional database sub-record of a signup
// request. Its absence means no database was requested.
type DatabaseFeature struct {
	ID              uint   `gorm:"primarykey" json:"-"`
	SignupRequestID uint   `gorm:"uniqueIndex;not null" json:"-"`
	Name            string `gorm:"size:64;not null" json:"name"`
	Username        string `gorm:"size:64;not null" json:"username"`
	PasswordToken   string `gorm:"size:512" json:"-"`
}

// SignupRequest is one hosting account request and its approval state.
// Encrypted credential tokens are excluded from every serialized form.
type SignupRequest struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	PublicID string `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	UserID   uint   `gorm:"index;not null" json:"user_id"`

	Domain              string `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	ServerPasswordToken string `gorm:"size:512" json:"-"`

	WantSSL  bool             `json:"want_ssl"`
	WantDNS  bool             `json:"want_dns"`
	Email    *EmailFeature    `gorm:"foreignKey:SignupRequestID" json:"email,omitempty"`
	Database *DatabaseFeature `gorm:"foreignKey:SignupRequestID" json:"database,omitempty"`

	StorageQuotaMB int `json:"storage_quota_mb"`

	Status       SignupStatus `gorm:"size:16;not null;default:pending" json:"status"`
	AdminComment string       `gorm:"size:1024" json:"admin_comment,omitempty"`
	ApprovedByID *uint        `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty"`

	// Outcome records the result of the latest provisioning attempt for
	// an approved request. Empty until the orchestrator runs.
	Outcome string `gorm:"size:32" json:"outcome,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VirtualHost represents one webserver vhost bound to a domain. The slot
// number lets a domain host multiple independent document roots.
type VirtualHost struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Domain        string    `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	DocumentRoot  string    `gorm:"size:512;not null" json:"document_root"`
	Slot          int       `json:"slot"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	LinuxUsername string    `gorm:"size:32;not null" json:"linux_username"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EmailDomain is a mail domain owned by a virtual host. Ownership is the
// foreign key relation, not duplicated user references.
type EmailDomain struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	VirtualHostID uint           `gorm:"index;not null" json:"virtual_host_id"`
	Domain        string         `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	Accounts      []EmailAccount `gorm:"foreignKey:EmailDomainID;constraint:OnDelete:CASCADE" json:"accounts,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EmailAccount is one mailbox within an email domain.
type EmailAccount struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	EmailDomainID uint      `gorm:"index:idx_email_account,unique;not null" json:"email_domain_id"`
	Username      string    `gorm:"index:idx_email_account,unique;size:64;not null" json:"username"`
	QuotaMB       int       `json:"quota_mb"`
	PasswordToken string    `gorm:"size:512" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// CertStatus is the lifecycle state of an SSL certificate.
type CertStatus string

const (
	CertPending CertStatus = "pending"
	CertActive  CertStatus = "active"
	CertExpired CertStatus = "expired"
	CertRevoked CertStatus = "revoked"
)

// SSLCertificate tracks the one certificate per domain.
type SSLCertificate struct {
	ID        uint                `gorm:"primarykey" json:"id"`
	Domain    string              `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	Status    CertStatus          `gorm:"size:16;not null;default:pending" json:"status"`
	IssuedAt  *time.Time          `json:"issued_at,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Logs      []SSLCertificateLog `gorm:"foreignKey:SSLCertificateID" json:"-"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// SSLCertificateLog is the append-only audit trail of certificate
// operations. Rows are only ever inserted, never updated or overwritten.
type SSLCertificateLog struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	SSLCertificateID uint      `gorm:"index;not null" json:"-"`
	Action           string    `gorm:"size:32;not null" json:"action"`
	Outcome          string    `gorm:"size:16;not null" json:"outcome"`
	Message          string    `gorm:"size:1024" json:"message"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProvisionLog is one entry of the per-request provisioning audit trail.
// Together the rows of one attempt are the source of truth for which
// resources exist after a partial provisioning.
type ProvisionLog struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	SignupRequestID uint      `gorm:"index;not null" json:"signup_request_id"`
	AttemptID       string    `gorm:"size:36;not null" json:"attempt_id"`
	Step            string    `gorm:"size:32;not null" json:"step"`
	Action          string    `gorm:"size:16;not null" json:"action"`
	Status          string    `gorm:"size:16;not null" json:"status"`
	Message         string    `gorm:"size:1024" json:"message"`
	DurationMS      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
