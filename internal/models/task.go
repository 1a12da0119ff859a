package models

import "time"

type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task is one queued webhook turn. The API creates it before publishing the
// task id to the queue; the worker drives it to a terminal status.
type Task struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	ChatID string `gorm:"type:varchar(128);index;not null"`
	Query  string `gorm:"type:text;not null"`

	Status TaskStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultMessageID *string `gorm:"type:varchar(512);index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Task) TableName() string { return "tasks" }
