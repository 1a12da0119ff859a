package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/agent"
	"github.com/mindline/mindline-backend/internal/agent/tools"
	"github.com/mindline/mindline-backend/internal/config"
	"github.com/mindline/mindline-backend/internal/db"
	"github.com/mindline/mindline-backend/internal/llm"
	"github.com/mindline/mindline-backend/internal/pipeline"
	"github.com/mindline/mindline-backend/internal/store/rabbitmq"
	"github.com/mindline/mindline-backend/internal/store/redisstore"
	"github.com/mindline/mindline-backend/internal/telegram"
)

const (
	// chatLockTTL caps how long a stuck worker can block a chat.
	chatLockTTL   = 5 * time.Minute
	chatLockRetry = 500 * time.Millisecond

	// turnTimeout bounds one full classify -> respond -> deliver sequence.
	turnTimeout = 10 * time.Minute
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLMTimeout)
	if err != nil {
		log.Fatal("openai client init failed", zap.Error(err))
	}

	registry := tools.NewRegistry(
		tools.CurrentTime{},
		tools.SaveCallbackRequest{},
		tools.SaveUserInfo{},
		tools.NewWebSearch(cfg.SearchAPIURL, cfg.SearchAPIKey),
	)

	guardrail := agent.NewGuardrail(client, config.GuardrailModel)
	support := agent.NewSupport(client, config.AgentModel, registry, log)

	tg := telegram.NewClient(nil, cfg.TelegramAPIBase)

	repo := pipeline.NewRepo(gdb)
	pipe := pipeline.NewService(repo, guardrail, support, client, tg, config.AgentModel, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial failed", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel failed", zap.Error(err))
	}
	defer ch.Close()

	// Declaration must match the publisher's arguments exactly.
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		log.Fatal("queue declare failed", zap.Error(err))
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos failed", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency),
	)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				var m rabbitmq.TaskMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.TaskID == "" {
					wlog.Error("bad message", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleTask(ctx, pipe, repo, rds, m.TaskID); err != nil {
					wlog.Error("task failed",
						zap.String("task_id", m.TaskID),
						zap.Duration("cost", time.Since(start)),
						zap.Error(err),
					)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					wlog.Error("ack failed", zap.String("task_id", m.TaskID), zap.Error(err))
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleTask(ctx context.Context, pipe *pipeline.Service, repo *pipeline.Repo, rds *redisstore.Store, taskID string) error {
	tctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	_ = repo.MarkTaskRunning(tctx, taskID)

	task, err := repo.GetTaskByID(tctx, taskID)
	if err != nil {
		return err
	}

	// Turns for one chat id run one at a time.
	if err := rds.WaitChatLock(tctx, task.ChatID, chatLockTTL, chatLockRetry); err != nil {
		_ = repo.MarkTaskFailed(tctx, taskID, err.Error())
		return err
	}
	defer func() {
		_ = rds.ReleaseChatLock(context.Background(), task.ChatID)
	}()

	messageID, err := pipe.ProcessTelegramTurn(tctx, task.ChatID, task.Query)
	if err != nil {
		_ = repo.MarkTaskFailed(tctx, taskID, err.Error())
		return err
	}

	return repo.MarkTaskSucceeded(tctx, taskID, messageID)
}
