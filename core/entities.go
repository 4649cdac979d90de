package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User is a wallet-backed identity. A user is created on the first
// successful wallet authentication and owns zero or more devices and
// sessions.
type User struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	WalletAddress string    `json:"walletAddress" gorm:"uniqueIndex;not null"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role" gorm:"not null;default:'user'"`
	IsVerified    bool      `json:"isVerified" gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Device is a browser/device instance identified by a fingerprint.
// UserID is nil until the device is claimed by an authenticated user.
// WalletAddresses holds every wallet (lowercase) ever paired with the
// device; the pairing policy allows at most one distinct wallet unless
// the device is reset.
type Device struct {
	ID              uuid.UUID                    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DeviceID        string                       `json:"deviceId" gorm:"index:idx_device_fingerprint;not null"`
	UserID          *uuid.UUID                   `json:"userId,omitempty" gorm:"type:uuid;index"`
	WalletAddresses datatypes.JSONSlice[string]  `json:"walletAddresses"`
	IsActive        bool                         `json:"isActive" gorm:"not null;default:true"`
	IsApproved      bool                         `json:"isApproved" gorm:"not null;default:false"`
	VisitCount      int                          `json:"visitCount" gorm:"not null;default:1"`
	FirstSeen       time.Time                    `json:"firstSeen"`
	LastSeen        time.Time                    `json:"lastSeen"`
	LastIPAddress   string                       `json:"lastIpAddress"`
	LastUserAgent   string                       `json:"lastUserAgent"`
	CreatedAt       time.Time                    `json:"createdAt"`
	UpdatedAt       time.Time                    `json:"updatedAt"`
}

func (Device) TableName() string { return "user_devices" }

// HasWallet reports whether the device already recorded the given
// wallet address (compared lowercase).
func (d *Device) HasWallet(address string) bool {
	address = strings.ToLower(address)
	for _, w := range d.WalletAddresses {
		if w == address {
			return true
		}
	}
	return false
}

// Session is a live authenticated context bound to a user and a device
// fingerprint. Ended sessions are kept (IsActive=false, EndedAt set)
// until the retention purge removes them.
type Session struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;index;not null"`
	DeviceID  string     `json:"deviceId" gorm:"not null"`
	TokenID   string     `json:"-" gorm:"index"`
	IPAddress string     `json:"ipAddress"`
	UserAgent string     `json:"userAgent"`
	IsActive  bool       `json:"isActive" gorm:"index;not null;default:true"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Session) TableName() string { return "user_sessions" }

// RefreshToken stores the HMAC hash of an opaque refresh token. The raw
// token is returned to the client once and never persisted. SessionID
// keeps the rotation chain bound to its session; it is empty only when
// the session row could not be stored.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	SessionID string    `gorm:"index"`
	TokenHash string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// NormalizeAddress lowercases a wallet address for storage and
// comparison. Addresses are always compared case-insensitively.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
