package habit

import (
	"database/sql"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxWeeklyGoal caps the weekly goal at one completion per calendar day.
const MaxWeeklyGoal = 7

// MaxNameLength bounds habit and list names.
const MaxNameLength = 255

// MaxNoteLength bounds free-text notes on habits and checked records.
const MaxNoteLength = 1000

// NewHabit carries the fields required to create a habit.
type NewHabit struct {
	Name         string
	WeeklyGoal   int
	DisplayOrder int
	ListID       *int64
}

// Validate applies the business rules checked before any write.
func (n NewHabit) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Name, validation.Required, validation.Length(1, MaxNameLength)),
		validation.Field(&n.WeeklyGoal, validation.Min(0), validation.Max(MaxWeeklyGoal)),
	)
}

// NewList carries the fields required to create a list.
type NewList struct {
	Name         string
	DisplayOrder int
}

func (n NewList) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Name, validation.Required, validation.Length(1, MaxNameLength)),
	)
}

// HabitPatch is a typed partial update for a habit. A nil field is left
// unchanged; the set of mutable fields is fixed here instead of being checked
// against an allow-list at runtime.
type HabitPatch struct {
	Name         *string
	DisplayOrder *int
	WeeklyGoal   *int
	Deleted      *bool
	Starred      *bool
	Note         *string
	URL          *string

	// ListID distinguishes three states: nil leaves the assignment alone,
	// Valid=false clears it, Valid=true moves the habit to that list.
	ListID *sql.NullInt64
}

// AssignList builds the ListID patch value that moves a habit into a list.
func AssignList(id int64) *sql.NullInt64 {
	return &sql.NullInt64{Int64: id, Valid: true}
}

// ClearList builds the ListID patch value that detaches a habit from its list.
func ClearList() *sql.NullInt64 {
	return &sql.NullInt64{}
}

func (p HabitPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, MaxNameLength)),
		validation.Field(&p.WeeklyGoal, validation.Min(0), validation.Max(MaxWeeklyGoal)),
		validation.Field(&p.Note, validation.Length(0, MaxNoteLength)),
	)
}

// IsZero reports whether the patch changes nothing.
func (p HabitPatch) IsZero() bool {
	return p.Name == nil && p.DisplayOrder == nil && p.WeeklyGoal == nil &&
		p.Deleted == nil && p.Starred == nil && p.Note == nil && p.URL == nil &&
		p.ListID == nil
}

// ListPatch is the typed partial update for a list.
type ListPatch struct {
	Name               *string
	DisplayOrder       *int
	Deleted            *bool
	EnableLetterFilter *bool
}

func (p ListPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, MaxNameLength)),
	)
}

func (p ListPatch) IsZero() bool {
	return p.Name == nil && p.DisplayOrder == nil && p.Deleted == nil &&
		p.EnableLetterFilter == nil
}
