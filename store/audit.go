package store

import (
	"github.com/kingG4e/web-control-panel/interfaces"
)

// AppendProvisionLog appends one audit entry for a provisioning attempt.
// Entries are append-only.
func (s *Store) AppendProvisionLog(requestID uint, attemptID string, result interfaces.StepResult) error {
	entry := ProvisionLog{
		SignupRequestID: requestID,
		AttemptID:       attemptID,
		Step:            string(result.Kind),
		Action:          result.Action,
		Status:          string(result.Status),
		Message:         result.Message,
		DurationMS:      result.Duration.Milliseconds(),
	}
	return s.db.Create(&entry).Error
}

// ListProvisionLog returns all audit entries for a request, oldest first.
func (s *Store) ListProvisionLog(requestID uint) ([]ProvisionLog, error) {
	var entries []ProvisionLog
	err := s.db.Where("signup_request_id = ?", requestID).Order("id asc").Find(&entries).Error
	return entries, err
}

// ListAttemptLog returns the audit entries of one provisioning attempt.
func (s *Store) ListAttemptLog(requestID uint, attemptID string) ([]ProvisionLog, error) {
	var entries []ProvisionLog
	err := s.db.Where("signup_request_id = ? AND attempt_id = ?", requestID, attemptID).
		Order("id asc").Find(&entries).Error
	return entries, err
}
