package interfaces

import (
	"context"
	"time"
)

// StepKind identifies one concrete resource kind created by a provisioner.
type StepKind string

// Provisioning step kinds, in their canonical execution order.
const (
	StepLinuxAccount   StepKind = "linux_account"
	StepVirtualHost    StepKind = "virtual_host"
	StepDNSZone        StepKind = "dns_zone"
	StepMailDomain     StepKind = "mail_domain"
	StepDatabase       StepKind = "database"
	StepSSLCertificate StepKind = "ssl_certificate"
	StepDiskQuota      StepKind = "disk_quota"
)

// FailurePolicy declares how the orchestrator reacts when a step fails.
type FailurePolicy string

const (
	// PolicyFatal aborts the remaining steps and marks the overall
	// provisioning attempt as failed.
	PolicyFatal FailurePolicy = "fatal"

	// PolicyBestEffort logs the failure and continues with later steps.
	PolicyBestEffort FailurePolicy = "best-effort"
)

// StepStatus is the recorded outcome of a single provisioning step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// StepResult is one entry of the per-request audit trail.
type StepResult struct {
	Kind     StepKind      `json:"kind"`
	Action   string        `json:"action"`
	Status   StepStatus    `json:"status"`
	Message  string        `json:"message"`
	Policy   FailurePolicy `json:"policy"`
	Duration time.Duration `json:"duration"`
}

// Outcome is the aggregate result of a provisioning attempt, derived from
// all step outcomes.
type Outcome string

const (
	// OutcomeFullyProvisioned means every fatal-class step succeeded.
	OutcomeFullyProvisioned Outcome = "fully-provisioned"

	// OutcomePartiallyProvisioned means at least one fatal-class step
	// failed; the per-step audit log is the source of truth for what
	// exists.
	OutcomePartiallyProvisioned Outcome = "partially-provisioned"

	// OutcomeCancelled means a cancellation request stopped the sequence
	// before all steps ran. Steps already started were not preempted.
	OutcomeCancelled Outcome = "cancelled"
)

// EmailSelection carries the requested mailbox parameters with the
// account password already decrypted.
type EmailSelection struct {
	Username string
	QuotaMB  int
	Password string
}

// DatabaseSelection carries the requested database parameters with the
// account password already decrypted.
type DatabaseSelection struct {
	Name     string
	Username string
	Password string
}

// ProvisionRequest is the decrypted, validated view of an approved signup
// request handed to each provisioner. Optional features are nil when not
// requested; their steps are skipped entirely, not attempted-and-failed.
type ProvisionRequest struct {
	RequestID uint
	PublicID  string
	UserID    uint

	Domain   Domain
	Username Username

	// ServerPassword is the decrypted Linux account password. Empty if
	// decryption failed; provisioners requiring it must fail, not skip.
	ServerPassword string

	StorageQuotaMB int

	WantSSL  bool
	WantDNS  bool
	Email    *EmailSelection
	Database *DatabaseSelection
}

// Provisioner creates and destroys one concrete resource kind in an
// external subsystem. Implementations are independent of each other and
// must be idempotent: provisioning an already-existing resource is
// detected and treated as success, never duplicated.
type Provisioner interface {
	// Kind identifies the resource kind this provisioner manages.
	Kind() StepKind

	// Policy declares how a failure of this step is treated.
	Policy() FailurePolicy

	// Provision creates the resource. It returns a human-readable message
	// describing what was done, and an error on failure.
	Provision(ctx context.Context, req *ProvisionRequest) (string, error)

	// Deprovision removes the resource. Missing resources are not an
	// error.
	Deprovision(ctx context.Context, req *ProvisionRequest) (string, error)
}
