package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequest struct {
	FirstName     string `json:"firstName" binding:"required"`
	LastName      string `json:"lastName"`
	Email         string `json:"email" binding:"required"`
	Age           int    `json:"age" binding:"required"`
	Gender        string `json:"gender" binding:"required"`
	PrivacyPolicy bool   `json:"privacyPolicy"`
	ChatID        string `json:"chatId" binding:"required"`
}

type registerResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// Register completes the one-time registration gate: it fills the profile of
// the user created on first webhook contact and marks it verified. Repeating
// the call overwrites the same fields; there is nothing else to do.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	h.Log.Info("registering a new user", zap.String("chat_id", req.ChatID))

	ctx := c.Request.Context()
	user, err := h.Repo.GetUserByChatID(ctx, req.ChatID)
	if err != nil {
		h.Log.Error("register lookup failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		c.JSON(http.StatusOK, registerResponse{
			Status:  false,
			Message: "Server error, contact the admin of the Telegram Bot.",
		})
		return
	}
	if user == nil {
		h.Log.Info("register: unknown chat id", zap.String("chat_id", req.ChatID))
		c.JSON(http.StatusOK, registerResponse{
			Status:  false,
			Message: "User not found, contact the admin of the Telegram Bot.",
		})
		return
	}

	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = req.Email
	user.Age = req.Age
	user.Gender = req.Gender
	user.PrivacyPolicy = req.PrivacyPolicy
	user.IsVerified = true

	if err := h.Repo.SaveUser(ctx, user); err != nil {
		h.Log.Error("register save failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		c.JSON(http.StatusOK, registerResponse{
			Status:  false,
			Message: "Server error, contact the admin of the Telegram Bot.",
		})
		return
	}

	c.JSON(http.StatusOK, registerResponse{
		Status:  true,
		Message: "User registration successfull.",
	})
}
