// Package models contains domain entities and business models for the referral marketplace
package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`

	FirstName string `gorm:"size:255;not null" json:"first_name"`
	LastName  string `gorm:"size:255;not null" json:"last_name"`

	Email        string  `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	PasswordHash string  `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	Phone        *string `gorm:"size:20" json:"phone,omitempty"`

	Role string `gorm:"size:20;not null;index:idx_users_role" json:"role"`

	IsEmailVerified *bool `gorm:"default:false" json:"is_email_verified"`
	IsActive        *bool `gorm:"default:true;index:idx_users_is_active" json:"is_active"`

	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	LastLoginAt     *time.Time `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`

	// Relations
	Business         *Business         `gorm:"foreignKey:UserID" json:"business,omitempty"`
	OTPVerifications []OTPVerification `gorm:"foreignKey:UserID" json:"-"`
	Sessions         []UserSession     `gorm:"foreignKey:UserID" json:"-"`
	AuditLogs        []AuditLog        `gorm:"foreignKey:UserID" json:"-"`
	Subscriptions    []Subscription    `gorm:"foreignKey:ReferrerUserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// User role constants
const (
	UserRoleBusiness = "business"
	UserRoleCustomer = "customer"
)

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Email           *string
	Role            *string
	IsEmailVerified *bool
	IsActive        *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

func (u *User) IsBusiness() bool {
	return u.Role == UserRoleBusiness
}

func (u *User) IsCustomer() bool {
	return u.Role == UserRoleCustomer
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
