package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilbekov/handcarry-orders/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task model.Task) (*model.Task, error) {
	var saved model.Task
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO tasks (
			sender_id,
			title,
			description,
			size,
			estimated_value,
			from_airport,
			from_point,
			to_airport,
			to_point,
			date_from,
			date_to,
			reward,
			status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING
			id, sender_id, title, description, size, estimated_value,
			from_airport, from_point, to_airport, to_point,
			date_from, date_to, reward, status,
			moderated_by, moderated_at, moderator_note, created_at
	`,
		task.SenderID,
		task.Title,
		task.Description,
		task.Size,
		task.EstimatedValue,
		task.FromAirport,
		task.FromPoint,
		task.ToAirport,
		task.ToPoint,
		task.DateFrom,
		task.DateTo,
		task.Reward,
		task.Status,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			id, sender_id, title, description, size, estimated_value,
			from_airport, from_point, to_airport, to_point,
			date_from, date_to, reward, status,
			moderated_by, moderated_at, moderator_note, created_at
		FROM tasks
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &task, nil
}

func (r *TaskRepository) UpdateModeration(
	ctx context.Context,
	taskID uuid.UUID,
	status model.TaskStatus,
	moderatorID uuid.UUID,
	moderatedAt time.Time,
	note *string,
) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE tasks
		SET status = ?, moderated_by = ?, moderated_at = ?, moderator_note = ?
		WHERE id = ?
	`, status, moderatorID, moderatedAt, note, taskID).Error
}
