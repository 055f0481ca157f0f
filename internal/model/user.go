// Package model defines domain entities for the application.
package model

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxUserNameLength bounds User.Name; it matches the column width in the users table.
const MaxUserNameLength = 80

// Validation errors for User.
var (
	ErrUserNameRequired = errors.New("user name is required")
	ErrUserNameTooLong  = errors.New("user name exceeds 80 characters")
)

// User is the example entity mapped by the data-access layer.
// ID is assigned by the store on insert.
type User struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:80;not null" json:"name"`
}

// TableName pins the table name independent of gorm's naming strategy.
func (User) TableName() string {
	return "users"
}

// Validate checks the invariants the schema enforces.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrUserNameRequired
	}
	if utf8.RuneCountInString(u.Name) > MaxUserNameLength {
		return ErrUserNameTooLong
	}
	return nil
}
