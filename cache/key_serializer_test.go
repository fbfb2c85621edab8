package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/habitkit/go-habit-engine/habit"
)

func TestSerializeKeyScalars(t *testing.T) {
	s := NewKeySerializer()
	uid := uuid.MustParse("a2aeb3b6-9e0a-4a6f-8e5a-0f6f3f2e4d1c")

	tests := []struct {
		name string
		op   string
		args []any
		want string
	}{
		{"no args", "user_count", nil, "user_count"},
		{"int64 id", "habit_get_by_id", []any{int64(12)}, "habit_get_by_id:12"},
		{"uuid", "user_get_by_id", []any{uid}, "user_get_by_id:" + uid.String()},
		{"day collapses to date", "habit_checks",
			[]any{int64(5), time.Date(2024, 1, 8, 15, 4, 5, 0, time.UTC)},
			"habit_checks:5:2024-01-08"},
		{"nil pointer", "habit_list_by_user", []any{uid, (*int64)(nil)},
			"habit_list_by_user:" + uid.String() + ":nil"},
		{"bool and string", "flags", []any{true, "x"}, "flags:true:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SerializeKey(tt.op, tt.args...); got != tt.want {
				t.Errorf("SerializeKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeKeyIDSliceSymmetry(t *testing.T) {
	s := NewKeySerializer()
	start := habit.Date(2024, 1, 1)
	end := habit.Date(2024, 1, 31)

	a := s.SerializeKey("habit_bulk_checks", []int64{3, 7, 12}, start, end)
	b := s.SerializeKey("habit_bulk_checks", []int64{12, 3, 7, 3}, start, end)
	if a != b {
		t.Errorf("reordered/duplicated ids produced different keys:\n%q\n%q", a, b)
	}
	if a != "habit_bulk_checks:3:7:12:2024-01-01:2024-01-31" {
		t.Errorf("unexpected key %q", a)
	}
}

func TestSerializeKeyEmptyIDSlice(t *testing.T) {
	s := NewKeySerializer()
	got := s.SerializeKey("habit_bulk_checks", []int64{})
	if got != "habit_bulk_checks:none" {
		t.Errorf("empty id slice key = %q", got)
	}
}

func TestSerializeKeyDeterministic(t *testing.T) {
	s := NewKeySerializer()
	uid := uuid.New()
	for i := 0; i < 10; i++ {
		a := s.SerializeKey("habit_list_by_user", uid, (*int64)(nil))
		b := s.SerializeKey("habit_list_by_user", uid, (*int64)(nil))
		if a != b {
			t.Fatalf("nondeterministic key: %q vs %q", a, b)
		}
	}
}
