package store

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// CreateUser persists a panel user with a bcrypt password hash.
func (s *Store) CreateUser(username, email, password string, isAdmin bool) (*User, error) {
	if username == "" {
		return nil, &interfaces.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if password == "" {
		return nil, &interfaces.ValidationError{Field: "password", Reason: "must not be empty"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, translateErr(err, "user", username)
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(id uint) (*User, error) {
	var user User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, translateErr(err, "user", "")
	}
	return &user, nil
}

// Authenticate verifies a username/password pair and returns the user on
// success. Failures do not reveal whether the user exists.
func (s *Store) Authenticate(username, password string) (*User, error) {
	var user User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, interfaces.ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, interfaces.ErrNotFound
	}
	return &user, nil
}
