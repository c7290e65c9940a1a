package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of deadlines.
const DateLayout = "2006-01-02"

// NoDeadline is the sentinel deadline clients use for "no real deadline".
const NoDeadline = "2099-12-31"

// Priority ranks a task. Lower values are more urgent.
type Priority int

const (
	PriorityUrgent  Priority = 1
	PriorityWaiting Priority = 2
	PriorityLow     Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityWaiting:
		return "waiting"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Reason records why a history snapshot was taken. Notes reuse it for their
// live processed flag.
type Reason int

const (
	ReasonUpdated   Reason = 1
	ReasonCompleted Reason = 2
	ReasonDeleted   Reason = 3
)

func (r Reason) String() string {
	switch r {
	case ReasonUpdated:
		return "updated"
	case ReasonCompleted:
		return "completed"
	case ReasonDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ParseReason accepts either the name or the numeric code of a reason.
func ParseReason(value string) (Reason, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "updated", "1":
		return ReasonUpdated, nil
	case "completed", "2":
		return ReasonCompleted, nil
	case "deleted", "3":
		return ReasonDeleted, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidReason, value)
}

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate returns the calendar day of t, read in t's location, as midnight
// UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string in %s format", DateLayout)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(value string) error {
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type User struct {
	UserID   string `db:"user_id" json:"userId"`
	UserName string `db:"user_name" json:"userName"`
	Password string `db:"password" json:"password,omitempty"`
}

type Task struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"tasktitle"`
	Detail    *string   `db:"detail" json:"detail"`
	Priority  Priority  `db:"priority" json:"priority"`
	Deadline  *Date     `db:"deadline" json:"deadline"`
	CreatedAt time.Time `db:"created_at" json:"createDateTime"`
	UpdatedAt time.Time `db:"updated_at" json:"updateDateTime"`
	UserID    *string   `db:"user_id" json:"user"`
}

// TaskHistory is a write-once snapshot of a task taken before it changed.
type TaskHistory struct {
	TaskID     int64     `db:"task_id" json:"taskProcessedId" validate:"min=1"`
	HistorySeq int64     `db:"history_seq" json:"historySeq" validate:"min=1"`
	Title      string    `db:"title" json:"tasktitle" validate:"required,max=100"`
	Detail     *string   `db:"detail" json:"detail" validate:"omitempty,max=1000"`
	Priority   Priority  `db:"priority" json:"priority" validate:"oneof=1 2 3"`
	Deadline   *Date     `db:"deadline" json:"deadline"`
	CreatedAt  time.Time `db:"created_at" json:"createDateTime"`
	UpdatedAt  time.Time `db:"updated_at" json:"updateDateTime"`
	Reason     Reason    `db:"processed_flag" json:"processedFlag" validate:"oneof=1 2 3"`
	UserID     *string   `db:"user_id" json:"user" validate:"omitempty,max=15"`
}

type Note struct {
	ID            int64     `db:"id" json:"id"`
	Body          *string   `db:"body" json:"notebody"`
	CreatedAt     time.Time `db:"created_at" json:"createDateTime"`
	UpdatedAt     time.Time `db:"updated_at" json:"updateDateTime"`
	ProcessedFlag Reason    `db:"processed_flag" json:"processedFlag"`
	UserID        *string   `db:"user_id" json:"user"`
}

// NoteHistory is a write-once snapshot of a note taken before it changed.
type NoteHistory struct {
	NoteID     int64     `db:"note_id" json:"noteProcessedId" validate:"min=1"`
	HistorySeq int64     `db:"history_seq" json:"historySeq" validate:"min=1"`
	Body       *string   `db:"body" json:"notebody" validate:"omitempty,max=1000"`
	CreatedAt  time.Time `db:"created_at" json:"createDateTime"`
	UpdatedAt  time.Time `db:"updated_at" json:"updateDateTime"`
	Reason     Reason    `db:"processed_flag" json:"processedFlag" validate:"oneof=1 2 3"`
	UserID     *string   `db:"user_id" json:"user" validate:"omitempty,max=15"`
}

// TaskSort selects the ordering of a user's task list.
type TaskSort int

const (
	SortByPriority TaskSort = iota
	SortByDeadline
)

type TaskQuery struct {
	UserID      string
	Sort        TaskSort
	HideUndated bool
}

type TaskListing struct {
	Tasks         []Task `json:"tasks"`
	DueTodayCount int    `json:"due_today_count"`
}

// DailyCounts holds, per priority, the number of tasks due on each of the
// seven days starting today.
type DailyCounts struct {
	Priority1 [7]int `json:"priority_1_count"`
	Priority2 [7]int `json:"priority_2_count"`
	Priority3 [7]int `json:"priority_3_count"`
}
