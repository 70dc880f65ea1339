package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPendingModeration TaskStatus = "PENDING_MODERATION"
	TaskStatusActive            TaskStatus = "ACTIVE"
	TaskStatusInProgress        TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted         TaskStatus = "COMPLETED"
	TaskStatusCancelled         TaskStatus = "CANCELLED"
	TaskStatusRejected          TaskStatus = "REJECTED"
)

type ParcelSize string

const (
	ParcelSizeS ParcelSize = "S"
	ParcelSizeM ParcelSize = "M"
	ParcelSizeL ParcelSize = "L"
)

// MaxEstimatedValue is the declared-value ceiling for a parcel.
const MaxEstimatedValue = 10000

// Task is a sender's delivery request. Tasks are never deleted;
// cancellation and rejection are statuses.
type Task struct {
	ID             uuid.UUID
	SenderID       uuid.UUID
	Title          string
	Description    string
	Size           ParcelSize
	EstimatedValue int64
	FromAirport    string
	FromPoint      string
	ToAirport      string
	ToPoint        string
	DateFrom       time.Time
	DateTo         time.Time
	Reward         int64
	Status         TaskStatus
	ModeratedBy    *uuid.UUID
	ModeratedAt    *time.Time
	ModeratorNote  *string
	CreatedAt      time.Time
}
