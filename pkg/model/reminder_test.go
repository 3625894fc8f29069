package model

import (
	"errors"
	"testing"
	"time"
)

func TestReminderRuleValidate(t *testing.T) {
	custom := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule ReminderRule
		want error
	}{
		{
			name: "valid due rule",
			rule: ReminderRule{
				ReferenceType:   ReferenceDue,
				OffsetDirection: OffsetBefore,
				OffsetAmount:    2,
				OffsetUnit:      OffsetHours,
			},
		},
		{
			name: "valid custom rule",
			rule: ReminderRule{
				ReferenceType:   ReferenceCustom,
				CustomDatetime:  &custom,
				OffsetDirection: OffsetAfter,
				OffsetAmount:    0,
				OffsetUnit:      OffsetMinutes,
			},
		},
		{
			name: "custom without datetime",
			rule: ReminderRule{
				ReferenceType:   ReferenceCustom,
				OffsetDirection: OffsetBefore,
				OffsetUnit:      OffsetMinutes,
			},
			want: ErrCustomDatetimeRequired,
		},
		{
			name: "due with datetime",
			rule: ReminderRule{
				ReferenceType:   ReferenceDue,
				CustomDatetime:  &custom,
				OffsetDirection: OffsetBefore,
				OffsetUnit:      OffsetMinutes,
			},
			want: ErrCustomDatetimeForbidden,
		},
		{
			name: "unknown reference type",
			rule: ReminderRule{
				ReferenceType:   "SOMEDAY",
				OffsetDirection: OffsetBefore,
				OffsetUnit:      OffsetMinutes,
			},
			want: ErrUnknownReferenceType,
		},
		{
			name: "unknown direction",
			rule: ReminderRule{
				ReferenceType:   ReferenceStart,
				OffsetDirection: "AROUND",
				OffsetUnit:      OffsetMinutes,
			},
			want: ErrUnknownOffsetDirection,
		},
		{
			name: "unknown unit",
			rule: ReminderRule{
				ReferenceType:   ReferenceStart,
				OffsetDirection: OffsetBefore,
				OffsetUnit:      "WEEKS",
			},
			want: ErrUnknownOffsetUnit,
		},
		{
			name: "negative offset",
			rule: ReminderRule{
				ReferenceType:   ReferenceStart,
				OffsetDirection: OffsetBefore,
				OffsetAmount:    -1,
				OffsetUnit:      OffsetHours,
			},
			want: ErrNegativeOffset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
