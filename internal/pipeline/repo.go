package pipeline

import (
	"context"

	"gorm.io/gorm"

	"github.com/mindline/mindline-backend/internal/models"
)

// Repo is the persistence layer for users, messages and queued tasks. Every
// method is one short-lived unit of work; no long-held transactions.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// GetUserByChatID returns nil, nil when no user owns the chat id.
func (r *Repo) GetUserByChatID(ctx context.Context, chatID string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) SaveUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *Repo) CreateMessage(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListRecentMessages returns up to limit most recent non-deleted turns for a
// chat, oldest first, ready to replay as context.
func (r *Repo) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 8
	}
	var desc []models.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ? AND is_deleted = ?", chatID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&desc).Error; err != nil {
		return nil, err
	}

	// reverse to ASC (oldest -> newest)
	asc := make([]models.Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		asc = append(asc, desc[i])
	}
	return asc, nil
}

// Task CRUD

func (r *Repo) CreateTask(ctx context.Context, t *models.Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) MarkTaskRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", id, models.TaskQueued).
		Update("status", models.TaskRunning).Error
}

func (r *Repo) MarkTaskSucceeded(ctx context.Context, id string, messageID string) error {
	var msgID *string
	if messageID != "" {
		msgID = &messageID
	}
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            models.TaskSucceeded,
			"result_message_id": msgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkTaskFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            models.TaskFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}
