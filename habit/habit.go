package habit

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the owning identity for habits and lists. Users are created by an
// external registration flow; this engine only ever reads them.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Email     string    `bun:"email,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// List groups habits for display. Deleting a list soft-deletes it and cascades
// the soft delete to every habit referencing it.
type List struct {
	bun.BaseModel `bun:"table:lists,alias:l"`

	ID                 int64     `bun:"id,pk,autoincrement"`
	Name               string    `bun:"name,notnull"`
	DisplayOrder       int       `bun:"display_order,notnull,default:0"`
	Deleted            bool      `bun:"deleted,notnull,default:false"`
	EnableLetterFilter bool      `bun:"enable_letter_filter,notnull,default:true"`
	UserID             uuid.UUID `bun:"user_id,notnull,type:uuid"`
	CreatedAt          time.Time `bun:"created_at,notnull"`
	UpdatedAt          time.Time `bun:"updated_at,notnull"`
}

// Habit is a trackable recurring activity. WeeklyGoal is the number of done
// days targeted per week; 0 means the habit has no goal and is excluded from
// streak calculations. ListID is nil for habits outside any list.
type Habit struct {
	bun.BaseModel `bun:"table:habits,alias:h"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Name         string    `bun:"name,notnull"`
	DisplayOrder int       `bun:"display_order,notnull,default:0"`
	WeeklyGoal   int       `bun:"weekly_goal,notnull,default:0"`
	Deleted      bool      `bun:"deleted,notnull,default:false"`
	Starred      bool      `bun:"starred,notnull,default:false"`
	Note         string    `bun:"note,nullzero"`
	URL          string    `bun:"url,nullzero"`
	ListID       *int64    `bun:"list_id"`
	UserID       uuid.UUID `bun:"user_id,notnull,type:uuid"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`

	CheckedRecords []*CheckedRecord `bun:"rel:has-many,join:id=habit_id"`
}

// CheckedRecord is the per-day completion marker for one habit. At most one
// record exists per (habit, day). Done=false is an explicit skip, which is
// distinct from the day having no record at all.
type CheckedRecord struct {
	bun.BaseModel `bun:"table:checked_records,alias:cr"`

	ID        string    `bun:"id,pk"`
	HabitID   int64     `bun:"habit_id,notnull"`
	Day       time.Time `bun:"day,notnull,type:date"`
	Done      bool      `bun:"done,notnull,default:false"`
	Note      string    `bun:"note,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Date builds the canonical representation of a calendar day: midnight UTC.
// All day columns and day arguments flow through this normalization so that
// range comparisons and cache keys are stable.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a day the way cache keys and day-set lookups expect it.
func DayKey(t time.Time) string {
	return DateOf(t).Format("2006-01-02")
}
