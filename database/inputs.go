package database

import (
	"github.com/CrowderSoup/scheduler/validation"
)

// TaskInput carries the client-writable fields of a task.
type TaskInput struct {
	Title    string   `json:"tasktitle" validate:"required,max=100"`
	Detail   *string  `json:"detail" validate:"omitempty,max=1000"`
	Priority Priority `json:"priority" validate:"oneof=1 2 3"`
	Deadline *Date    `json:"deadline"`
	UserID   *string  `json:"user" validate:"omitempty,max=15"`
}

// NewTaskInput returns an input populated with the column defaults.
func NewTaskInput() TaskInput {
	return TaskInput{Priority: PriorityUrgent}
}

func (in TaskInput) Validate() error {
	if errs := validation.Struct(in); errs != nil {
		return errs
	}
	return nil
}

// Input returns the writable fields of t. Pointer fields are copied so the
// result can be modified without touching t.
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:    t.Title,
		Detail:   cloneString(t.Detail),
		Priority: t.Priority,
		Deadline: cloneDate(t.Deadline),
		UserID:   cloneString(t.UserID),
	}
}

// NoteInput carries the client-writable fields of a note.
type NoteInput struct {
	Body          *string `json:"notebody" validate:"omitempty,max=1000"`
	ProcessedFlag Reason  `json:"processedFlag" validate:"oneof=1 2 3"`
	UserID        *string `json:"user" validate:"omitempty,max=15"`
}

func NewNoteInput() NoteInput {
	return NoteInput{ProcessedFlag: ReasonUpdated}
}

func (in NoteInput) Validate() error {
	if errs := validation.Struct(in); errs != nil {
		return errs
	}
	return nil
}

func (n Note) Input() NoteInput {
	return NoteInput{
		Body:          cloneString(n.Body),
		ProcessedFlag: n.ProcessedFlag,
		UserID:        cloneString(n.UserID),
	}
}

// UserInput carries the client-writable fields of a user. UserID is ignored
// on update; the primary key never changes.
type UserInput struct {
	UserID   string `json:"userId" validate:"required,max=15"`
	UserName string `json:"userName" validate:"required,max=48"`
	Password string `json:"password" validate:"required,max=25"`
}

func (in UserInput) Validate() error {
	if errs := validation.Struct(in); errs != nil {
		return errs
	}
	return nil
}

func (u User) Input() UserInput {
	return UserInput{UserID: u.UserID, UserName: u.UserName, Password: u.Password}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
