package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/controllers"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"go.uber.org/zap"
)

// SetupRouter wires every /api/v1 route. auth validates bearer tokens; tests
// pass a stand-in that sets the subject directly.
func SetupRouter(cfg *config.Config, auth gin.HandlerFunc, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(corsConfig(cfg)))

	v1 := router.Group("/api/v1")
	v1.GET("/health", HealthCheck)
	v1.GET("/database/status", DatabaseStatus)

	authed := v1.Group("", auth)
	authed.POST("/users", controllers.CreateUser)

	api := authed.Group("", middleware.LoadCurrentUser())
	customer := middleware.RequireRoles(models.RoleCustomer)
	provider := middleware.RequireRoles(models.RoleProvider)
	participant := middleware.RequireRoles(models.RoleCustomer, models.RoleProvider)

	api.GET("/users/me", controllers.GetMyProfile)
	api.PUT("/users/me", controllers.UpdateMyProfile)

	api.POST("/services", provider, controllers.CreateProviderService)
	api.PATCH("/services/:id", provider, controllers.SetProviderServiceActive)
	api.GET("/providers/:id/services", controllers.ListProviderServices)
	api.GET("/providers/:id/reviews", controllers.ListProviderReviews)

	orders := api.Group("/orders")
	{
		orders.POST("", customer, controllers.CreateOrder)
		orders.GET("", controllers.ListOrders)
		orders.GET("/:id", controllers.GetOrder)
		orders.PATCH("/:id/status", provider, controllers.UpdateOrderStatus)
		orders.POST("/:id/cancel", customer, controllers.CancelOrder)
		orders.PATCH("/:id/attendance", provider, controllers.UpdateAttendance)
		orders.POST("/:id/verification", customer, controllers.VerifyOrder)
		orders.POST("/:id/photo", customer, controllers.UploadJobPhoto)

		orders.GET("/:id/costs", controllers.ListCosts)
		orders.POST("/:id/costs", participant, controllers.ProposeCost)
		orders.PATCH("/:id/costs/:detailId", customer, controllers.DecideCost)
		orders.DELETE("/:id/costs/:detailId", participant, controllers.DeleteCost)

		orders.POST("/:id/review", customer, controllers.SubmitReview)
		orders.POST("/:id/conversation", participant, controllers.OpenConversation)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/:id", controllers.GetReview)
		reviews.PATCH("/:id", customer, controllers.EditReview)
		reviews.POST("/:id/reports", controllers.ReportReview)
	}

	conversations := api.Group("/conversations", participant)
	{
		conversations.GET("/:id/messages", controllers.ListMessages)
		conversations.POST("/:id/messages", controllers.SendMessage)
		conversations.GET("/:id/access-grants", customer, controllers.ListChatAccessGrants)
		conversations.POST("/:id/access-grants", customer, controllers.GrantChatAccess)
		conversations.DELETE("/:id/access-grants", customer, controllers.RevokeChatAccess)
	}

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.PUT("/orders/:id/status", controllers.OverrideOrderStatus)
		admin.GET("/reports", controllers.ListReports)
		admin.POST("/reports/:id/resolve", controllers.ResolveReport)
		admin.PATCH("/reviews/:id/visibility", controllers.SetReviewVisibility)
		admin.GET("/conversations/:id/transcript", controllers.ReadTranscript)
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, controllers.AccessTokenHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	origins := []string{"*"}
	if cfg != nil && len(cfg.CORSAllowedOrigins) > 0 {
		origins = cfg.CORSAllowedOrigins
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return corsCfg
}
