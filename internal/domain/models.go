// Package domain defines the persistence models for the extension directory,
// call records, and directory administrators. These types are mapped with
// GORM and form the core data layer of the call router.
package domain

import (
	"time"
)

// Call statuses written by the router itself. Any other value is a status
// string reported by the provider (e.g. "busy", "no-answer", "failed").
const (
	CallStatusOngoing   = "ongoing"
	CallStatusCompleted = "completed"
)

// Extension maps a short dial code to the destination that should ring when
// a caller enters it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Number: destination address; an E.164 number or a "sip:" URI.
//   - Extension: dial code. Indexed for routing lookups but not unique; the
//     most recently created row wins when codes collide.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Extension struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Number    string    `json:"number"    gorm:"type:varchar(255);not null"`
	Extension string    `json:"extension" gorm:"type:varchar(16);not null;index:idx_extension_code,priority:1"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_extension_code,priority:2"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Extension.
func (Extension) TableName() string { return "extensions" }

// CallRecord is the local log of one bridged call, correlated with provider
// webhooks through CallSid.
//
// A record is created with status "ongoing" when the caller is connected to an
// extension, then patched independently by the recording and status
// callbacks. Updates are keyed by CallSid and last-write-wins.
type CallRecord struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	From         string    `json:"from"         gorm:"type:varchar(255);not null"`
	To           string    `json:"to"           gorm:"type:varchar(255);not null"`
	Extension    *string   `json:"extension"    gorm:"type:varchar(16)"`
	CallSid      string    `json:"callSid"      gorm:"type:varchar(64);not null;index:idx_call_sid"`
	Status       string    `json:"status"       gorm:"type:varchar(32);not null"`
	RecordingURL *string   `json:"recordingUrl" gorm:"type:text"`
	CreatedAt    time.Time `json:"createdAt"    gorm:"index"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for CallRecord.
func (CallRecord) TableName() string { return "calls" }

// User is an administrator allowed to manage the extension directory.
// Password holds a bcrypt hash and is never serialized.
type User struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"     gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Password  string    `json:"-"         gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
