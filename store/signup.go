package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// NewEmailFeature carries the plaintext mailbox request parameters. The
// password is encrypted before persistence and never stored raw.
type NewEmailFeature struct {
	Username string
	QuotaMB  int
	Password string
}

// NewDatabaseFeature carries the plaintext database request parameters.
type NewDatabaseFeature struct {
	Name     string
	Username string
	Password string
}

// NewSignupRequest is the submission payload for a hosting account
// request. Optional features are nil when not requested.
type NewSignupRequest struct {
	UserID         uint
	Domain         string
	ServerPassword string
	WantSSL        bool
	WantDNS        bool
	Email          *NewEmailFeature
	Database       *NewDatabaseFeature
	StorageQuotaMB int
}

// CreateSignupRequest validates and persists a new pending request.
// Credentials are encrypted through the vault before they reach the
// database. A domain already requested yields a ConflictError with no
// side effects.
func (s *Store) CreateSignupRequest(req NewSignupRequest) (*SignupRequest, error) {
	domain, err := interfaces.NewDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	if req.UserID == 0 {
		return nil, &interfaces.ValidationError{Field: "user_id", Reason: "must reference the requesting user"}
	}
	if req.ServerPassword == "" {
		return nil, &interfaces.ValidationError{Field: "server_password", Reason: "must not be empty"}
	}
	if req.StorageQuotaMB < 0 {
		return nil, &interfaces.ValidationError{Field: "storage_quota_mb", Reason: "must not be negative"}
	}

	token, err := s.vault.Encrypt([]byte(req.ServerPassword))
	if err != nil {
		return nil, err
	}

	record := &SignupRequest{
		PublicID:            uuid.NewString(),
		UserID:              req.UserID,
		Domain:              domain.String(),
		ServerPasswordToken: string(token),
		WantSSL:             req.WantSSL,
		WantDNS:             req.WantDNS,
		StorageQuotaMB:      req.StorageQuotaMB,
		Status:              SignupPending,
	}

	if req.Email != nil {
		if req.Email.Username == "" {
			return nil, &interfaces.ValidationError{Field: "email.username", Reason: "must not be empty"}
		}
		mailToken, err := s.vault.Encrypt([]byte(req.Email.Password))
		if err != nil {
			return nil, err
		}
		record.Email = &EmailFeature{
			Username:      req.Email.Username,
			QuotaMB:       req.Email.QuotaMB,
			PasswordToken: string(mailToken),
		}
	}

	if req.Database != nil {
		if req.Database.Name == "" || req.Database.Username == "" {
			return nil, &interfaces.ValidationError{Field: "database", Reason: "name and username are required"}
		}
		dbToken, err := s.vault.Encrypt([]byte(req.Database.Password))
		if err != nil {
			return nil, err
		}
		record.Database = &DatabaseFeature{
			Name:          req.Database.Name,
			Username:      req.Database.Username,
			PasswordToken: string(dbToken),
		}
	}

	if err := s.db.Create(record).Error; err != nil {
		return nil, translateErr(err, "signup request for domain", record.Domain)
	}
	return record, nil
}

// GetSignupRequest loads a request with its feature sub-records.
func (s *Store) GetSignupRequest(id uint) (*SignupRequest, error) {
	var record SignupRequest
	err := s.db.Preload("Email").Preload("Database").First(&record, id).Error
	if err != nil {
		return nil, translateErr(err, "signup request", fmt.Sprint(id))
	}
	return &record, nil
}

// ListSignupRequests returns requests, optionally filtered by status.
func (s *Store) ListSignupRequests(status SignupStatus) ([]SignupRequest, error) {
	var records []SignupRequest
	q := s.db.Preload("Email").Preload("Database").Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// requireAdmin verifies the actor has administrative capability.
func (s *Store) requireAdmin(adminID uint) error {
	var admin User
	if err := s.db.First(&admin, adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &interfaces.ValidationError{Field: "actor", Reason: "unknown admin user"}
		}
		return err
	}
	if !admin.IsAdmin {
		return &interfaces.ValidationError{Field: "actor", Reason: "administrative capability required"}
	}
	return nil
}

// ApproveSignup transitions a pending request to approved. The status,
// approving admin and approval timestamp are set in a single guarded
// update: either all three change or none do. Terminal requests are
// never re-opened.
func (s *Store) ApproveSignup(id, adminID uint, comment string) (*SignupRequest, error) {
	return s.transition(id, adminID, comment, SignupApproved)
}

// RejectSignup transitions a pending request to rejected.
func (s *Store) RejectSignup(id, adminID uint, comment string) (*SignupRequest, error) {
	return s.transition(id, adminID, comment, SignupRejected)
}

func (s *Store) transition(id, adminID uint, comment string, target SignupStatus) (*SignupRequest, error) {
	if err := s.requireAdmin(adminID); err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.db.Model(&SignupRequest{}).
		Where("id = ? AND status = ?", id, SignupPending).
		Updates(map[string]interface{}{
			"status":         target,
			"approved_by_id": adminID,
			"approved_at":    now,
			"admin_comment":  comment,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either the request does not exist or it already left pending.
		current, err := s.GetSignupRequest(id)
		if err != nil {
			return nil, err
		}
		return nil, &interfaces.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("request is %s, only pending requests can be %s", current.Status, target),
		}
	}

	return s.GetSignupRequest(id)
}

// SetOutcome records the aggregate result of a provisioning attempt.
func (s *Store) SetOutcome(id uint, outcome interfaces.Outcome) error {
	res := s.db.Model(&SignupRequest{}).Where("id = ?", id).Update("outcome", string(outcome))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// PurgeSignup hard-deletes a terminal request and its sub-records. This
// is the only physical deletion path and is restricted to admins.
func (s *Store) PurgeSignup(id, adminID uint) error {
	if err := s.requireAdmin(adminID); err != nil {
		return err
	}

	record, err := s.GetSignupRequest(id)
	if err != nil {
		return err
	}
	if record.Status == SignupPending {
		return &interfaces.ValidationError{Field: "status", Reason: "pending requests cannot be purged"}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("signup_request_id = ?", id).Delete(&EmailFeature{}).Error; err != nil {
			return err
		}
		if err := tx.Where("signup_request_id = ?", id).Delete(&DatabaseFeature{}).Error; err != nil {
			return err
		}
		if err := tx.Where("signup_request_id = ?", id).Delete(&ProvisionLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&SignupRequest{}, id).Error
	})
}
