package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ReferenceType string

const (
	ReferenceStart  ReferenceType = "START"
	ReferenceDue    ReferenceType = "DUE"
	ReferenceCustom ReferenceType = "CUSTOM"
)

type OffsetDirection string

const (
	OffsetBefore OffsetDirection = "BEFORE"
	OffsetAfter  OffsetDirection = "AFTER"
)

type OffsetUnit string

const (
	OffsetMinutes OffsetUnit = "MINUTES"
	OffsetHours   OffsetUnit = "HOURS"
	OffsetDays    OffsetUnit = "DAYS"
)

var (
	ErrCustomDatetimeRequired  = errors.New("custom reference requires custom_datetime")
	ErrCustomDatetimeForbidden = errors.New("custom_datetime is only valid for custom reference")
	ErrNegativeOffset          = errors.New("offset_amount must be non-negative")
	ErrUnknownReferenceType    = errors.New("unknown reference_type")
	ErrUnknownOffsetUnit       = errors.New("unknown offset_unit")
	ErrUnknownOffsetDirection  = errors.New("unknown offset_direction")
)

// ReminderRule fires one envelope when its calculated fire time passes.
// is_sent transitions false to true at most once; sent_at is set atomically
// with that transition by the sweep's claim.
type ReminderRule struct {
	ID                 uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ParentEntityID     uuid.UUID     `gorm:"type:uuid;not null;index"`
	ReferenceType      ReferenceType `gorm:"type:varchar(20);not null"`
	CustomDatetime     *time.Time
	OffsetDirection    OffsetDirection `gorm:"type:varchar(20);not null"`
	OffsetAmount       int             `gorm:"not null"`
	OffsetUnit         OffsetUnit      `gorm:"type:varchar(20);not null"`
	CalculatedFireTime *time.Time      `gorm:"index"`
	IsSent             bool            `gorm:"default:false;index"`
	SentAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate enforces the rule invariants: custom_datetime is non-null iff the
// reference type is CUSTOM, and the offset fields carry known values.
func (r *ReminderRule) Validate() error {
	switch r.ReferenceType {
	case ReferenceStart, ReferenceDue:
		if r.CustomDatetime != nil {
			return ErrCustomDatetimeForbidden
		}
	case ReferenceCustom:
		if r.CustomDatetime == nil {
			return ErrCustomDatetimeRequired
		}
	default:
		return ErrUnknownReferenceType
	}

	switch r.OffsetDirection {
	case OffsetBefore, OffsetAfter:
	default:
		return ErrUnknownOffsetDirection
	}

	switch r.OffsetUnit {
	case OffsetMinutes, OffsetHours, OffsetDays:
	default:
		return ErrUnknownOffsetUnit
	}

	if r.OffsetAmount < 0 {
		return ErrNegativeOffset
	}

	return nil
}
