package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/models"
	"github.com/mindline/mindline-backend/internal/telegram"
)

type setWebhookRequest struct {
	URL string `json:"url" binding:"required"`
}

// updateSeenTTL keeps webhook update ids long enough to absorb Telegram's
// redelivery window.
const updateSeenTTL = 24 * time.Hour

func (h *Handler) SetWebhook(c *gin.Context) {
	var req setWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if !strings.HasPrefix(req.URL, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "webhook url must be https"})
		return
	}

	description, err := h.Telegram.SetWebhook(c.Request.Context(), req.URL)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": apiErr.Description})
			return
		}
		h.Log.Error("set webhook failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to set webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "description": description})
}

// Webhook receives platform updates. Non-text updates are ignored; text
// messages pass the registration gate and, for verified users, become a
// queued task. The heavy classify/respond work never runs on this request.
func (h *Handler) Webhook(c *gin.Context) {
	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid update payload"})
		return
	}

	if !update.HasTextMessage() {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := c.Request.Context()

	// Telegram redelivers until it sees a 200; drop repeats of an update we
	// already accepted. Best effort, a redis hiccup must not lose turns.
	if seen, err := h.Redis.SeenUpdate(ctx, update.UpdateID, updateSeenTTL); err != nil {
		h.Log.Warn("update dedupe unavailable", zap.Error(err))
	} else if seen {
		c.JSON(http.StatusOK, gin.H{"status": "processing"})
		return
	}

	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	text := update.Message.Text

	var firstName string
	if update.Message.From != nil {
		firstName = update.Message.From.FirstName
	}

	user, err := h.Repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		h.Log.Error("webhook user lookup failed", zap.String("chat_id", chatID), zap.Error(err))
		h.forgetUpdate(ctx, update.UpdateID)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	switch {
	case user == nil:
		created := &models.User{
			FirstName: firstName,
			LastName:  "",
			ChatID:    chatID,
			Channel:   models.ChannelTelegram,
		}
		if err := h.Repo.CreateUser(ctx, created); err != nil {
			h.Log.Error("webhook user create failed", zap.String("chat_id", chatID), zap.Error(err))
			h.forgetUpdate(ctx, update.UpdateID)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
			return
		}
		h.sendRegistrationLink(c, update.Message.Chat.ID, chatID)

	case !user.IsVerified:
		h.sendRegistrationLink(c, update.Message.Chat.ID, chatID)

	default:
		task := &models.Task{
			ID:     ulid.Make().String(),
			ChatID: chatID,
			Query:  text,
			Status: models.TaskQueued,
		}
		if err := h.Repo.CreateTask(ctx, task); err != nil {
			h.Log.Error("webhook task create failed", zap.String("chat_id", chatID), zap.Error(err))
			h.forgetUpdate(ctx, update.UpdateID)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
			return
		}
		if err := h.Queue.PublishTask(ctx, task.ID); err != nil {
			h.Log.Error("webhook task publish failed",
				zap.String("chat_id", chatID),
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			// The row was never published; park it so the redelivered update
			// starts clean instead of leaving an orphaned queued task.
			_ = h.Repo.MarkTaskFailed(ctx, task.ID, "publish failed: "+err.Error())
			h.forgetUpdate(ctx, update.UpdateID)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "processing"})
}

// forgetUpdate rolls the dedupe key back after a failed webhook so the
// platform's redelivery is processed instead of dropped.
func (h *Handler) forgetUpdate(ctx context.Context, updateID int64) {
	if err := h.Redis.ForgetUpdate(ctx, updateID); err != nil {
		h.Log.Warn("update dedupe rollback failed",
			zap.Int64("update_id", updateID),
			zap.Error(err),
		)
	}
}

func (h *Handler) sendRegistrationLink(c *gin.Context, numericChatID int64, chatID string) {
	// Pre-escaped MarkdownV2: the markup must survive, only literal specials
	// are escaped.
	text := fmt.Sprintf(
		"To get started and unlock all the features, you need to *register* first 📝 👉 "+
			"*Click here to register*: [Link](%s/register?chatId=%s)\\. "+
			"Once you're done, come back and start chatting with the bot\\! 💬✨",
		h.Cfg.FrontendURL, chatID,
	)
	if err := h.Telegram.SendMarkdownMessage(c.Request.Context(), numericChatID, text); err != nil {
		// Delivery failure is fatal for this turn but not for the server.
		h.Log.Error("registration link send failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}
