package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/agent"
	"github.com/mindline/mindline-backend/internal/agent/tools"
	"github.com/mindline/mindline-backend/internal/config"
	"github.com/mindline/mindline-backend/internal/db"
	"github.com/mindline/mindline-backend/internal/httpapi"
	"github.com/mindline/mindline-backend/internal/httpapi/handlers"
	"github.com/mindline/mindline-backend/internal/llm"
	"github.com/mindline/mindline-backend/internal/pipeline"
	"github.com/mindline/mindline-backend/internal/store/rabbitmq"
	"github.com/mindline/mindline-backend/internal/store/redisstore"
	"github.com/mindline/mindline-backend/internal/telegram"
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

	queue, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatal("rabbit connect failed", zap.Error(err))
	}
	defer queue.Close()

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

	h := handlers.NewHandler(cfg, log, repo, pipe, tg, queue, rds)
	router := httpapi.NewRouter(h, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("api listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
