// Package orchestrator sequences the resource provisioners that turn an
// approved signup request into a working hosting account. It owns step
// ordering, failure policy, per-request mutual exclusion, the audit
// trail and outcome reporting; the individual resource mutations live in
// the provisioner package.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/notify"
	"github.com/kingG4e/web-control-panel/store"
)

// ErrAlreadyRunning is returned when a provisioning run is requested for
// a request that is already being provisioned.
var ErrAlreadyRunning = errors.New("provisioning already running for this request")

// DefaultStepTimeout bounds a single provisioning step.
const DefaultStepTimeout = 2 * time.Minute

// stepOrder is the canonical execution order. Later steps may depend on
// earlier ones (the vhost needs the user, the certificate needs the
// vhost's docroot), so the order is fixed rather than configurable.
var stepOrder = []interfaces.StepKind{
	interfaces.StepLinuxAccount,
	interfaces.StepVirtualHost,
	interfaces.StepDNSZone,
	interfaces.StepMailDomain,
	interfaces.StepDatabase,
	interfaces.StepSSLCertificate,
	interfaces.StepDiskQuota,
}

// Config tunes the orchestrator.
type Config struct {
	// StepTimeout bounds each provisioning step. Zero means
	// DefaultStepTimeout.
	StepTimeout time.Duration
}

// Orchestrator drives provisioning runs for approved signup requests.
type Orchestrator struct {
	store        *store.Store
	provisioners map[interfaces.StepKind]interfaces.Provisioner
	publisher    interfaces.Publisher
	mailer       *notify.Mailer
	archive      interfaces.ArchiveBackend
	log          *slog.Logger
	stepTimeout  time.Duration

	mu       sync.Mutex
	inflight map[uint]struct{}
}

// New creates an orchestrator over the given provisioners. The mailer
// and archive are optional and may be nil.
func New(s *store.Store, provisioners []interfaces.Provisioner, publisher interfaces.Publisher, mailer *notify.Mailer, archive interfaces.ArchiveBackend, cfg Config, log *slog.Logger) *Orchestrator {
	byKind := make(map[interfaces.StepKind]interfaces.Provisioner, len(provisioners))
	for _, p := range provisioners {
		byKind[p.Kind()] = p
	}

	timeout := cfg.StepTimeout
	if timeout == 0 {
		timeout = DefaultStepTimeout
	}

	return &Orchestrator{
		store:        s,
		provisioners: byKind,
		publisher:    publisher,
		mailer:       mailer,
		archive:      archive,
		log:          log,
		stepTimeout:  timeout,
		inflight:     make(map[uint]struct{}),
	}
}

// Provision runs the provisioning sequence for an approved signup
// request. At most one run per request is active at a time; a second
// caller gets ErrAlreadyRunning instead of a duplicate run.
func (o *Orchestrator) Provision(ctx context.Context, requestID uint) (interfaces.Outcome, error) {
	if err := o.acquire(requestID); err != nil {
		return "", err
	}
	defer o.release(requestID)

	record, err := o.store.GetSignupRequest(requestID)
	if err != nil {
		return "", err
	}
	if record.Status != store.SignupApproved {
		return "", &interfaces.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("request is %s, only approved requests are provisioned", record.Status),
		}
	}

	req, decryptErrs := o.buildRequest(record)
	attemptID := uuid.NewString()
	log := o.log.With(
		slog.Uint64("request_id", uint64(requestID)),
		slog.String("attempt_id", attemptID),
		slog.String("domain", req.Domain.String()))

	log.Info("Provisioning run started")

	results, cancelled := o.runSteps(ctx, log, attemptID, req, decryptErrs)
	outcome := aggregateOutcome(results, cancelled)

	if err := o.store.SetOutcome(requestID, outcome); err != nil {
		log.Error("Failed to record provisioning outcome", "err", err)
	}

	o.exportAudit(log, record, attemptID, results, outcome)
	o.notifyOutcome(record, outcome, results)

	log.Info("Provisioning run finished",
		slog.String("outcome", string(outcome)),
		slog.Int("steps", len(results)))

	return outcome, nil
}

// Retry re-runs provisioning for a request. Provisioners are idempotent,
// so completed resources are detected and only the missing ones are
// created.
func (o *Orchestrator) Retry(ctx context.Context, requestID uint) (interfaces.Outcome, error) {
	return o.Provision(ctx, requestID)
}

// Deprovision tears down the resources of a request in reverse order.
// Removal keeps going past failures so one stuck subsystem does not
// block reclaiming the rest.
func (o *Orchestrator) Deprovision(ctx context.Context, requestID uint) error {
	if err := o.acquire(requestID); err != nil {
		return err
	}
	defer o.release(requestID)

	record, err := o.store.GetSignupRequest(requestID)
	if err != nil {
		return err
	}

	req, _ := o.buildRequest(record)
	attemptID := uuid.NewString()
	log := o.log.With(
		slog.Uint64("request_id", uint64(requestID)),
		slog.String("attempt_id", attemptID))

	var errs []error
	for i := len(stepOrder) - 1; i >= 0; i-- {
		kind := stepOrder[i]
		if !stepApplies(kind, req) {
			continue
		}

		p, ok := o.provisioners[kind]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no provisioner configured", kind))
			o.audit(log, requestID, attemptID, missingProvisionerResult(kind, "deprovision"))
			continue
		}

		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		msg, err := p.Deprovision(stepCtx, req)
		cancel()

		result := interfaces.StepResult{
			Kind:     p.Kind(),
			Action:   "deprovision",
			Status:   interfaces.StepSuccess,
			Message:  msg,
			Policy:   p.Policy(),
			Duration: time.Since(start),
		}
		if err != nil {
			result.Status = interfaces.StepFailed
			result.Message = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", p.Kind(), err))
			log.Error("Deprovisioning step failed", "err", err, slog.String("step", string(p.Kind())))
		}
		o.audit(log, requestID, attemptID, result)
	}

	return errors.Join(errs...)
}

func (o *Orchestrator) acquire(requestID uint) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[requestID]; busy {
		return ErrAlreadyRunning
	}
	o.inflight[requestID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(requestID uint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, requestID)
}

// buildRequest decrypts the stored credentials into the provisioning
// view. Decryption failures are returned per dependent step kind: the
// affected step must fail visibly during the run, not silently vanish
// from it.
func (o *Orchestrator) buildRequest(record *store.SignupRequest) (*interfaces.ProvisionRequest, map[interfaces.StepKind]error) {
	decryptErrs := make(map[interfaces.StepKind]error)
	domain := interfaces.Domain(record.Domain)

	req := &interfaces.ProvisionRequest{
		RequestID:      record.ID,
		PublicID:       record.PublicID,
		UserID:         record.UserID,
		Domain:         domain,
		Username:       interfaces.UsernameForDomain(domain),
		StorageQuotaMB: record.StorageQuotaMB,
		WantSSL:        record.WantSSL,
		WantDNS:        record.WantDNS,
	}

	serverPassword, err := o.store.Vault().Decrypt(interfaces.Token(record.ServerPasswordToken))
	if err != nil {
		decryptErrs[interfaces.StepLinuxAccount] = err
	} else {
		req.ServerPassword = string(serverPassword)
	}

	if record.Email != nil {
		mailPassword, err := o.store.Vault().Decrypt(interfaces.Token(record.Email.PasswordToken))
		if err != nil {
			decryptErrs[interfaces.StepMailDomain] = err
		}
		req.Email = &interfaces.EmailSelection{
			Username: record.Email.Username,
			QuotaMB:  record.Email.QuotaMB,
			Password: string(mailPassword),
		}
	}

	if record.Database != nil {
		dbPassword, err := o.store.Vault().Decrypt(interfaces.Token(record.Database.PasswordToken))
		if err != nil {
			decryptErrs[interfaces.StepDatabase] = err
		}
		req.Database = &interfaces.DatabaseSelection{
			Name:     record.Database.Name,
			Username: record.Database.Username,
			Password: string(dbPassword),
		}
	}

	return req, decryptErrs
}

// runSteps executes the applicable steps in order. It returns the step
// results and whether the run was cut short by cancellation.
func (o *Orchestrator) runSteps(ctx context.Context, log *slog.Logger, attemptID string, req *interfaces.ProvisionRequest, decryptErrs map[interfaces.StepKind]error) ([]interfaces.StepResult, bool) {
	var results []interfaces.StepResult

	for _, kind := range stepOrder {
		if !stepApplies(kind, req) {
			continue
		}

		// Cancellation is honored between steps. A step already started
		// runs to its own timeout rather than being preempted halfway
		// through an external mutation.
		if ctx.Err() != nil {
			log.Warn("Provisioning cancelled", slog.String("next_step", string(kind)))
			return results, true
		}

		// A selected step without a registered provisioner is a failed
		// step, not a skipped one. The panel cannot grant the capability,
		// and the trail must say so.
		var result interfaces.StepResult
		if p, ok := o.provisioners[kind]; ok {
			result = o.runStep(ctx, p, req, decryptErrs[kind])
		} else {
			result = missingProvisionerResult(kind, "provision")
		}
		o.audit(log, req.RequestID, attemptID, result)
		results = append(results, result)

		if result.Status == interfaces.StepFailed {
			log.Error("Provisioning step failed",
				slog.String("step", string(kind)),
				slog.String("policy", string(result.Policy)),
				slog.String("message", result.Message))
			if result.Policy == interfaces.PolicyFatal {
				return results, false
			}
			continue
		}

		log.Info("Provisioning step completed",
			slog.String("step", string(kind)),
			slog.Duration("duration", result.Duration))
	}

	return results, false
}

func (o *Orchestrator) runStep(ctx context.Context, p interfaces.Provisioner, req *interfaces.ProvisionRequest, decryptErr error) interfaces.StepResult {
	result := interfaces.StepResult{
		Kind:   p.Kind(),
		Action: "provision",
		Policy: p.Policy(),
	}

	if decryptErr != nil {
		result.Status = interfaces.StepFailed
		result.Message = fmt.Sprintf("credential unavailable: %v", decryptErr)
		return result
	}

	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	msg, err := p.Provision(stepCtx, req)
	cancel()
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = interfaces.StepFailed
		result.Message = err.Error()
		return result
	}
	result.Status = interfaces.StepSuccess
	result.Message = msg
	return result
}

// missingProvisionerResult reports a selected step the panel has no
// provisioner registered for.
func missingProvisionerResult(kind interfaces.StepKind, action string) interfaces.StepResult {
	return interfaces.StepResult{
		Kind:    kind,
		Action:  action,
		Status:  interfaces.StepFailed,
		Message: fmt.Sprintf("no provisioner configured for %s", kind),
		Policy:  stepPolicy(kind),
	}
}

// stepPolicy is the declared failure policy of a step kind, consulted
// when there is no registered provisioner to ask.
func stepPolicy(kind interfaces.StepKind) interfaces.FailurePolicy {
	if kind == interfaces.StepDiskQuota {
		return interfaces.PolicyBestEffort
	}
	return interfaces.PolicyFatal
}

// stepApplies reports whether a step kind is requested by this request.
// Non-applicable steps are skipped entirely: they produce no audit entry
// and do not count as failures.
func stepApplies(kind interfaces.StepKind, req *interfaces.ProvisionRequest) bool {
	switch kind {
	case interfaces.StepDNSZone:
		return req.WantDNS
	case interfaces.StepMailDomain:
		return req.Email != nil
	case interfaces.StepDatabase:
		return req.Database != nil
	case interfaces.StepSSLCertificate:
		return req.WantSSL
	case interfaces.StepDiskQuota:
		return req.StorageQuotaMB > 0
	default:
		return true
	}
}

// aggregateOutcome derives the overall result. A run with zero steps is
// fully provisioned: nothing was requested, nothing failed.
func aggregateOutcome(results []interfaces.StepResult, cancelled bool) interfaces.Outcome {
	if cancelled {
		return interfaces.OutcomeCancelled
	}
	for _, r := range results {
		if r.Status == interfaces.StepFailed && r.Policy == interfaces.PolicyFatal {
			return interfaces.OutcomePartiallyProvisioned
		}
	}
	return interfaces.OutcomeFullyProvisioned
}

func (o *Orchestrator) audit(log *slog.Logger, requestID uint, attemptID string, result interfaces.StepResult) {
	if err := o.store.AppendProvisionLog(requestID, attemptID, result); err != nil {
		log.Error("Failed to append provisioning audit entry", "err", err,
			slog.String("step", string(result.Kind)))
	}
}

// auditExport is the archived JSON shape of one provisioning attempt.
type auditExport struct {
	AttemptID string                  `json:"attempt_id"`
	RequestID uint                    `json:"request_id"`
	PublicID  string                  `json:"public_id"`
	Domain    string                  `json:"domain"`
	Outcome   interfaces.Outcome      `json:"outcome"`
	StartedAt time.Time               `json:"started_at"`
	Steps     []interfaces.StepResult `json:"steps"`
}

// exportAudit writes the attempt's audit trail to the archive backend.
// Archival is best-effort; the database rows remain the authority.
func (o *Orchestrator) exportAudit(log *slog.Logger, record *store.SignupRequest, attemptID string, results []interfaces.StepResult, outcome interfaces.Outcome) {
	if o.archive == nil {
		return
	}

	payload, err := json.Marshal(auditExport{
		AttemptID: attemptID,
		RequestID: record.ID,
		PublicID:  record.PublicID,
		Domain:    record.Domain,
		Outcome:   outcome,
		StartedAt: time.Now().UTC(),
		Steps:     results,
	})
	if err != nil {
		log.Error("Failed to serialize audit export", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	id, err := o.archive.Store(ctx, payload, interfaces.AuditArtifact)
	if err != nil {
		log.Warn("Failed to archive audit trail", "err", err)
		return
	}
	log.Info("Audit trail archived", slog.String("artifact_id", fmt.Sprintf("%x", id[:8])))
}

// capabilitySummary tells the requester which capabilities were and were
// not granted. Step kinds and statuses only; raw error detail stays in
// the audit log.
func capabilitySummary(results []interfaces.StepResult) string {
	var granted, denied []string
	for _, r := range results {
		switch r.Status {
		case interfaces.StepSuccess:
			granted = append(granted, string(r.Kind))
		case interfaces.StepFailed:
			denied = append(denied, string(r.Kind))
		}
	}

	var b strings.Builder
	if len(granted) > 0 {
		fmt.Fprintf(&b, "Granted: %s.", strings.Join(granted, ", "))
	}
	if len(denied) > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "Not granted: %s.", strings.Join(denied, ", "))
	}
	return b.String()
}

func (o *Orchestrator) notifyOutcome(record *store.SignupRequest, outcome interfaces.Outcome, results []interfaces.StepResult) {
	var (
		kind    interfaces.NotificationType
		title   string
		message string
	)

	switch outcome {
	case interfaces.OutcomeFullyProvisioned:
		kind = interfaces.NotificationSuccess
		title = "Hosting account ready"
		message = fmt.Sprintf("Your hosting account for %s is fully provisioned.", record.Domain)
	case interfaces.OutcomeCancelled:
		kind = interfaces.NotificationWarning
		title = "Provisioning cancelled"
		message = fmt.Sprintf("Provisioning of %s was cancelled before completion.", record.Domain)
	default:
		kind = interfaces.NotificationWarning
		title = "Provisioning incomplete"
		message = fmt.Sprintf("Provisioning of %s finished partially. %s An administrator will follow up.",
			record.Domain, capabilitySummary(results))
	}

	if o.publisher != nil {
		o.publisher.Publish(interfaces.Notification{
			ID:        uuid.NewString(),
			Title:     title,
			Message:   message,
			Type:      kind,
			UserID:    record.UserID,
			CreatedAt: time.Now(),
		})
	}

	if o.mailer != nil {
		user, err := o.store.GetUser(record.UserID)
		if err != nil {
			o.log.Warn("Cannot resolve requester for outcome mail", "err", err,
				slog.Uint64("user_id", uint64(record.UserID)))
			return
		}
		body := message + "\n\nSteps:\n"
		for _, r := range results {
			body += fmt.Sprintf("  %-16s %s\n", r.Kind, r.Status)
		}
		if err := o.mailer.Send(user.Email, title, body); err != nil {
			o.log.Warn("Outcome mail not delivered", "err", err)
		}
	}
}
