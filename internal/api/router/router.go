package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/primebets/advisor/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "advisor-service",
		})
	})

	automations := handler.NewAutomationHandler(deps)
	users := handler.NewUserHandler(deps)
	subscriptions := handler.NewSubscriptionHandler(deps)
	notifications := handler.NewNotificationHandler(deps)
	bets := handler.NewBetHandler(deps)
	advice := handler.NewAdviceHandler(deps)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		jobs := v1.Group("/automations")
		{
			jobs.GET("", automations.Status)
			jobs.POST("/stop-all", automations.StopAll)
			jobs.POST("/restart-all", automations.RestartAll)
			jobs.POST("/:name/stop", automations.Stop)
			jobs.POST("/:name/restart", automations.Restart)

			jobs.GET("/config", automations.Config)
			jobs.PATCH("/config/:name", automations.UpdateConfig)
			jobs.DELETE("/config", automations.ResetConfig)
		}

		v1.GET("/quiz", users.Questions)
		v1.GET("/plans", subscriptions.Plans)
		v1.GET("/platforms", users.Platforms)

		v1.POST("/users", users.CreateUser)

		account := v1.Group("/users/:user_id", users.LoadUser)
		{
			account.GET("", users.GetUser)
			account.POST("/quiz", users.SubmitQuiz)
			account.GET("/profile", users.GetProfile)
			account.GET("/reports", users.ListReports)

			account.GET("/subscription", subscriptions.GetSubscription)
			account.POST("/subscription", subscriptions.Subscribe)
			account.PATCH("/subscription", subscriptions.SetAutoRenew)
			account.DELETE("/subscription", subscriptions.Cancel)
			account.POST("/subscription/renew", subscriptions.Renew)

			account.GET("/notifications", notifications.List)
			account.DELETE("/notifications", notifications.ClearAll)
			account.GET("/notifications/stats", notifications.Stats)
			account.GET("/notifications/settings", notifications.PushSettings)
			account.PUT("/notifications/settings", notifications.SetPushSettings)
			account.POST("/notifications/read-all", notifications.MarkAllRead)
			account.POST("/notifications/:notification_id/read", notifications.MarkRead)
			account.DELETE("/notifications/:notification_id", notifications.Delete)

			account.GET("/bets", bets.ListBets)
			account.POST("/bets", bets.PlaceBet)
			account.POST("/bets/:bet_id/settle", bets.SettleBet)
			account.GET("/stats", bets.Stats)

			account.GET("/advice", advice.GetAdvice)
			account.GET("/advice/stake", advice.GetStake)
		}
	}

	return r
}
