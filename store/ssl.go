package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// EnsureCertificate returns the certificate record for a domain, creating
// a pending one if none exists. One certificate per domain.
func (s *Store) EnsureCertificate(domain interfaces.Domain) (*SSLCertificate, error) {
	var cert SSLCertificate
	err := s.db.Where("domain = ?", domain.String()).First(&cert).Error
	if err == nil {
		return &cert, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	cert = SSLCertificate{Domain: domain.String(), Status: CertPending}
	if err := s.db.Create(&cert).Error; err != nil {
		// Lost a race with a concurrent create; load the winner.
		if loadErr := s.db.Where("domain = ?", domain.String()).First(&cert).Error; loadErr == nil {
			return &cert, nil
		}
		return nil, translateErr(err, "ssl certificate", domain.String())
	}
	return &cert, nil
}

// AppendCertificateLog appends one entry to the certificate's audit
// trail. The log is append-only: entries are never updated or removed.
func (s *Store) AppendCertificateLog(certID uint, action, outcome, message string) error {
	entry := SSLCertificateLog{
		SSLCertificateID: certID,
		Action:           action,
		Outcome:          outcome,
		Message:          message,
	}
	return s.db.Create(&entry).Error
}

// SetCertificateStatus updates the certificate lifecycle state.
func (s *Store) SetCertificateStatus(certID uint, status CertStatus, issuedAt, expiresAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if issuedAt != nil {
		updates["issued_at"] = *issuedAt
	}
	if expiresAt != nil {
		updates["expires_at"] = *expiresAt
	}
	res := s.db.Model(&SSLCertificate{}).Where("id = ?", certID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// ListCertificateLog returns the audit trail for a certificate, oldest
// first.
func (s *Store) ListCertificateLog(certID uint) ([]SSLCertificateLog, error) {
	var entries []SSLCertificateLog
	err := s.db.Where("ssl_certificate_id = ?", certID).Order("id asc").Find(&entries).Error
	return entries, err
}
