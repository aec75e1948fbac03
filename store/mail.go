package store

import (
	"gorm.io/gorm"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// EnsureEmailDomain returns the mail domain record owned by a virtual
// host, creating it if absent.
func (s *Store) EnsureEmailDomain(vhostID uint, domain interfaces.Domain) (*EmailDomain, error) {
	var record EmailDomain
	err := s.db.Where("domain = ?", domain.String()).First(&record).Error
	if err == nil {
		return &record, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	record = EmailDomain{VirtualHostID: vhostID, Domain: domain.String()}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, translateErr(err, "email domain", domain.String())
	}
	return &record, nil
}

// UpsertEmailAccount creates a mailbox record, or refreshes the quota
// and password token of the existing one for the same domain and
// username. A retried run after a password change must leave the stored
// token matching what the mail system was given.
func (s *Store) UpsertEmailAccount(domainID uint, username string, quotaMB int, passwordToken string) (*EmailAccount, error) {
	var record EmailAccount
	err := s.db.Where("email_domain_id = ? AND username = ?", domainID, username).First(&record).Error
	if err == nil {
		record.QuotaMB = quotaMB
		record.PasswordToken = passwordToken
		if err := s.db.Save(&record).Error; err != nil {
			return nil, err
		}
		return &record, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	record = EmailAccount{
		EmailDomainID: domainID,
		Username:      username,
		QuotaMB:       quotaMB,
		PasswordToken: passwordToken,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, translateErr(err, "email account", username)
	}
	return &record, nil
}

// DeleteEmailDomain removes a mail domain and all of its account rows.
// The caller is responsible for having removed the accounts at the
// external mail system first; deleting the rows alone is not enough.
func (s *Store) DeleteEmailDomain(domainID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_domain_id = ?", domainID).Delete(&EmailAccount{}).Error; err != nil {
			return err
		}
		return tx.Delete(&EmailDomain{}, domainID).Error
	})
}

// ListEmailAccounts returns the mailboxes of a mail domain.
func (s *Store) ListEmailAccounts(domainID uint) ([]EmailAccount, error) {
	var accounts []EmailAccount
	err := s.db.Where("email_domain_id = ?", domainID).Find(&accounts).Error
	return accounts, err
}
