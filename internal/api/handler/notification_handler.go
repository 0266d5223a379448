package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/primebets/advisor/internal/api/dto"
	"github.com/primebets/advisor/internal/notification"
)

// NotificationHandler serves a user's notification history
type NotificationHandler struct {
	logger *slog.Logger
	sink   *notification.Sink
}

func NewNotificationHandler(deps *Dependencies) *NotificationHandler {
	return &NotificationHandler{
		logger: deps.Logger,
		sink:   deps.Sink,
	}
}

func notificationCursor(n notification.Notification) Cursor {
	return Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

// List handles GET /api/v1/users/:user_id/notifications
// Newest first, cursor paginated; ?unread=true keeps only unread entries.
func (h *NotificationHandler) List(c *gin.Context) {
	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, h.logger, "Invalid query parameters", err)
		return
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		badRequest(c, h.logger, "Invalid cursor", err)
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c).ID

	var list []notification.Notification
	if req.Unread {
		list, err = h.sink.ListUnread(ctx, userID)
	} else {
		list, err = h.sink.List(ctx, userID)
	}
	if err != nil {
		respondError(c, h.logger, "Failed to list notifications", err)
		return
	}

	page, next := paginate(list, notificationCursor, cursor, pageSize(req.PageSize))
	if page == nil {
		page = []notification.Notification{}
	}

	c.JSON(http.StatusOK, dto.NotificationPage{
		Notifications: page,
		NextCursor:    next,
	})
}

// Stats handles GET /api/v1/users/:user_id/notifications/stats
func (h *NotificationHandler) Stats(c *gin.Context) {
	stats, err := h.sink.Stats(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load notification stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// MarkRead handles POST /api/v1/users/:user_id/notifications/:notification_id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("notification_id")

	found, err := h.sink.MarkRead(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, h.logger, "Failed to mark notification read", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification_id": id, "read": true})
}

// MarkAllRead handles POST /api/v1/users/:user_id/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.sink.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to mark notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// Delete handles DELETE /api/v1/users/:user_id/notifications/:notification_id
func (h *NotificationHandler) Delete(c *gin.Context) {
	found, err := h.sink.Delete(c.Request.Context(), currentUser(c).ID, c.Param("notification_id"))
	if err != nil {
		respondError(c, h.logger, "Failed to delete notification", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearAll handles DELETE /api/v1/users/:user_id/notifications
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	if err := h.sink.ClearAll(c.Request.Context(), currentUser(c).ID); err != nil {
		respondError(c, h.logger, "Failed to clear notifications", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PushSettings handles GET /api/v1/users/:user_id/notifications/settings
func (h *NotificationHandler) PushSettings(c *gin.Context) {
	settings, err := h.sink.PushSettings(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load push settings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SetPushSettings handles PUT /api/v1/users/:user_id/notifications/settings
func (h *NotificationHandler) SetPushSettings(c *gin.Context) {
	var settings notification.PushSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	if err := h.sink.SetPushSettings(c.Request.Context(), currentUser(c).ID, settings); err != nil {
		respondError(c, h.logger, "Failed to save push settings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
