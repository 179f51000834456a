package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine with logging, recovery and CORS for the given origins.
func NewRouter(handler *Handler, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(handler.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.Health)

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", handler.Register)
		authRoutes.POST("/login", handler.Login)
		authRoutes.GET("/me", handler.Authenticate, handler.Me)
	}

	secured := api.Group("", handler.Authenticate)
	agent := secured.Group("", handler.RequireAgent)

	clients := agent.Group("/clients")
	{
		clients.GET("", handler.ListClients)
		clients.POST("", handler.CreateClient)
		clients.POST("/:id/password", handler.ResetClientPassword)
	}

	leads := agent.Group("/leads")
	{
		leads.GET("", handler.ListLeads)
		leads.POST("", handler.CreateLead)
		leads.GET("/:id", handler.GetLead)
		leads.PATCH("/:id", handler.UpdateLead)
		leads.DELETE("/:id", handler.DeleteLead)
		leads.POST("/:id/score", handler.ScoreLead)
		leads.POST("/:id/convert", handler.ConvertLead)
	}

	transactions := secured.Group("/transactions")
	{
		transactions.GET("", handler.ListTransactions)
		transactions.GET("/:id", handler.GetTransaction)
		transactions.GET("/:id/documents", handler.ListDocuments)
		transactions.POST("/:id/documents", handler.CreateDocument)

		transactions.POST("", handler.RequireAgent, handler.CreateTransaction)
		transactions.PATCH("/:id", handler.RequireAgent, handler.UpdateTransaction)
		transactions.DELETE("/:id", handler.RequireAgent, handler.DeleteTransaction)
		transactions.PATCH("/:id/milestone", handler.RequireAgent, handler.UpdateMilestoneFlags)
		transactions.PATCH("/:id/milestones/:milestoneId", handler.RequireAgent, handler.UpdateMilestone)
	}

	documents := secured.Group("/documents")
	{
		documents.PATCH("/:id/status", handler.UpdateDocumentStatus)
		documents.DELETE("/:id", handler.DeleteDocument)
	}

	showings := secured.Group("/showings")
	{
		showings.GET("", handler.ListShowings)
		showings.POST("", handler.CreateShowing)
		showings.GET("/:id", handler.GetShowing)
		showings.PATCH("/:id", handler.UpdateShowing)
		showings.DELETE("/:id", handler.CancelShowing)
		showings.POST("/:id/feedback", handler.ShowingFeedback)
	}

	ai := secured.Group("/ai")
	{
		ai.POST("/chat", handler.Chat)
		ai.POST("/generate-email", handler.RequireAgent, handler.GenerateEmail)
		ai.POST("/market-report", handler.RequireAgent, handler.MarketReport)
		ai.POST("/analyze-lead/:leadId", handler.RequireAgent, handler.AnalyzeLead)
	}

	analytics := agent.Group("/analytics")
	{
		analytics.GET("/dashboard", handler.Dashboard)
		analytics.GET("/leads", handler.LeadMetrics)
		analytics.GET("/transactions", handler.TransactionMetrics)
	}
}
