package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/primebets/advisor/internal/advisor"
	"github.com/primebets/advisor/internal/api/dto"
	"github.com/primebets/advisor/internal/history"
	"github.com/primebets/advisor/internal/user"
)

// UserHandler handles accounts, the profiling quiz and reports
type UserHandler struct {
	logger  *slog.Logger
	clock   clockwork.Clock
	users   *user.Directory
	advisor *advisor.Repository
	reports *history.Reports
}

func NewUserHandler(deps *Dependencies) *UserHandler {
	return &UserHandler{
		logger:  deps.Logger,
		clock:   deps.Clock,
		users:   deps.Users,
		advisor: deps.Advisor,
		reports: deps.Reports,
	}
}

// LoadUser resolves :user_id for every nested route and aborts with 404
// when the user does not exist
func (h *UserHandler) LoadUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.logger, "Failed to load user", err)
		c.Abort()
		return
	}
	c.Set(userKey, u)
	c.Next()
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	u, err := h.users.Create(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		respondError(c, h.logger, "Failed to create user", err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

// GetUser handles GET /api/v1/users/:user_id
func (h *UserHandler) GetUser(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// Questions handles GET /api/v1/quiz
func (h *UserHandler) Questions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": advisor.Questions})
}

// SubmitQuiz handles POST /api/v1/users/:user_id/quiz. A retake replaces
// the previous profile.
func (h *UserHandler) SubmitQuiz(c *gin.Context) {
	var req dto.QuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	answers := make([]advisor.Answer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = advisor.Answer{QuestionID: a.QuestionID, OptionID: a.OptionID}
	}

	profile, err := advisor.ScoreQuiz(answers, nil, h.clock.Now())
	if err != nil {
		respondError(c, h.logger, "Failed to score quiz", err)
		return
	}

	u := currentUser(c)
	if err := h.advisor.SaveProfile(c.Request.Context(), u.ID, profile); err != nil {
		respondError(c, h.logger, "Failed to save profile", err)
		return
	}

	h.logger.Info("Quiz completed",
		slog.String("user_id", u.ID),
		slog.String("style", string(profile.Style)),
		slog.Int("confidence", profile.Confidence),
	)

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
		"style":   profile.Style.Info(),
	})
}

// GetProfile handles GET /api/v1/users/:user_id/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.advisor.Profile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to load profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
		"style":   profile.Style.Info(),
	})
}

// ListReports handles GET /api/v1/users/:user_id/reports
func (h *UserHandler) ListReports(c *gin.Context) {
	reports, err := h.reports.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, h.logger, "Failed to list reports", err)
		return
	}
	if reports == nil {
		reports = []history.Report{}
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Platforms handles GET /api/v1/platforms
func (h *UserHandler) Platforms(c *gin.Context) {
	snapshots, at, err := h.advisor.Platforms(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to load platforms", err)
		return
	}

	resp := dto.PlatformsResponse{Platforms: snapshots}
	if resp.Platforms == nil {
		resp.Platforms = []advisor.PlatformSnapshot{}
	}
	if !at.IsZero() {
		resp.LastUpdate = &at
	}
	c.JSON(http.StatusOK, resp)
}
