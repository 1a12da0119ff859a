package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/config"
	"github.com/mindline/mindline-backend/internal/pipeline"
	"github.com/mindline/mindline-backend/internal/telegram"
)

// TaskPublisher enqueues webhook turn tasks (satisfied by rabbitmq.Publisher).
type TaskPublisher interface {
	PublishTask(ctx context.Context, taskID string) error
}

// UpdateDeduper drops redelivered webhook updates (satisfied by
// redisstore.Store). ForgetUpdate rolls an id back when the webhook failed
// after accepting it, so the platform's retry is not dropped.
type UpdateDeduper interface {
	SeenUpdate(ctx context.Context, updateID int64, ttl time.Duration) (bool, error)
	ForgetUpdate(ctx context.Context, updateID int64) error
}

// Handler carries the explicitly constructed services; nothing here is
// process-global.
type Handler struct {
	Cfg      config.Config
	Log      *zap.Logger
	Repo     *pipeline.Repo
	Pipeline *pipeline.Service
	Telegram *telegram.Client
	Queue    TaskPublisher
	Redis    UpdateDeduper
}

func NewHandler(cfg config.Config, log *zap.Logger, repo *pipeline.Repo, pipe *pipeline.Service, tg *telegram.Client, queue TaskPublisher, rds UpdateDeduper) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Cfg:      cfg,
		Log:      log,
		Repo:     repo,
		Pipeline: pipe,
		Telegram: tg,
		Queue:    queue,
		Redis:    rds,
	}
}
