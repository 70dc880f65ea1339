package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/config"
	"github.com/adilbekov/handcarry-orders/internal/model"
)

type TaskRepository interface {
	Create(ctx context.Context, task model.Task) (*model.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	UpdateModeration(ctx context.Context, taskID uuid.UUID, status model.TaskStatus, moderatorID uuid.UUID, moderatedAt time.Time, note *string) error
}

type TaskService struct {
	repo           TaskRepository
	forbiddenWords []string
}

func NewTaskService(repo TaskRepository, cfg *config.Config) *TaskService {
	return &TaskService{
		repo:           repo,
		forbiddenWords: cfg.Moderation.ForbiddenWords,
	}
}

type CreateTaskInput struct {
	Title          string
	Description    string
	Size           string
	EstimatedValue int64
	FromAirport    string
	FromPoint      string
	ToAirport      string
	ToPoint        string
	DateFrom       time.Time
	DateTo         time.Time
	Reward         int64
}

// Create registers a sender's delivery request. New tasks always enter
// PENDING_MODERATION regardless of content.
func (s *TaskService) Create(ctx context.Context, senderID uuid.UUID, input CreateTaskInput) (*model.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	size := model.ParcelSize(input.Size)
	if size != model.ParcelSizeS && size != model.ParcelSizeM && size != model.ParcelSizeL {
		return nil, fmt.Errorf("%w: size must be one of S, M, L", ErrInvalidInput)
	}
	if input.EstimatedValue < 0 || input.EstimatedValue > model.MaxEstimatedValue {
		return nil, fmt.Errorf("%w: estimated_value must be within [0, %d]", ErrInvalidInput, model.MaxEstimatedValue)
	}
	if input.Reward <= 0 {
		return nil, fmt.Errorf("%w: reward must be positive", ErrInvalidInput)
	}
	if input.FromAirport == "" || input.ToAirport == "" {
		return nil, fmt.Errorf("%w: route airports are required", ErrInvalidInput)
	}
	if input.DateFrom.After(input.DateTo) {
		return nil, fmt.Errorf("%w: date_from must not be after date_to", ErrInvalidInput)
	}

	return s.repo.Create(ctx, model.Task{
		SenderID:       senderID,
		Title:          input.Title,
		Description:    input.Description,
		Size:           size,
		EstimatedValue: input.EstimatedValue,
		FromAirport:    input.FromAirport,
		FromPoint:      input.FromPoint,
		ToAirport:      input.ToAirport,
		ToPoint:        input.ToPoint,
		DateFrom:       input.DateFrom,
		DateTo:         input.DateTo,
		Reward:         input.Reward,
		Status:         model.TaskStatusPendingModeration,
	})
}

func (s *TaskService) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return task, nil
}

// Moderate approves or rejects a pending task. Approval of a task whose
// title or description contains a forbidden keyword fails without touching
// the task; the moderator has to reject it explicitly.
func (s *TaskService) Moderate(ctx context.Context, taskID, moderatorID uuid.UUID, approved bool, comment *string) (*model.Task, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if task.Status != model.TaskStatusPendingModeration {
		return nil, fmt.Errorf("%w: task is not pending moderation", ErrInvalidTransition)
	}

	if approved && s.hasForbiddenContent(task) {
		return nil, fmt.Errorf("%w: task contains forbidden keywords", ErrContentPolicyViolation)
	}

	status := model.TaskStatusRejected
	if approved {
		status = model.TaskStatusActive
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateModeration(ctx, taskID, status, moderatorID, now, comment); err != nil {
		return nil, err
	}

	task.Status = status
	task.ModeratedBy = &moderatorID
	task.ModeratedAt = &now
	task.ModeratorNote = comment
	return task, nil
}

// hasForbiddenContent is a plain substring containment check, not a token
// match: a keyword hiding inside a longer word still counts.
func (s *TaskService) hasForbiddenContent(task *model.Task) bool {
	content := strings.ToLower(task.Title + " " + task.Description)
	for _, word := range s.forbiddenWords {
		if strings.Contains(content, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
