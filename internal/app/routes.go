// Package app provides HTTP handlers for the advisory service.
package app

import (
	"github.com/gin-gonic/gin"
	"github.com/nourabuild/advisory-service/internal/sdk/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ----------------------------------------------------------------------------
// Route Registration
// ----------------------------------------------------------------------------

func (a *App) RegisterRoutes() *gin.Engine {
	router := gin.New()

	// Global middleware chain
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.log))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(a.opts.CORSOrigins))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authenticated := middleware.Authenticate(a.auth)

	api := router.Group("/api")
	{
		// Health check routes (public)
		health := api.Group("/health")
		{
			health.GET("/readiness", a.HandleReadiness)
			health.GET("/liveness", a.HandleLiveness)
		}

		// Registration and OTP (public)
		users := api.Group("/users")
		{
			users.POST("/register", a.HandleRegister)
			users.POST("/verify-otp", a.HandleVerifyOTP)
			users.POST("/resend-otp", a.HandleResendOTP)
			users.GET("/:userId/loan-applications", authenticated, middleware.RequireSelf("userId"), a.HandleListUserApplications)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/social-login", a.HandleSocialLogin)
			auth.GET("/user", authenticated, a.HandleCurrentUser)
			auth.POST("/complete-profile", authenticated, a.HandleCompleteProfile)
			auth.POST("/logout", authenticated, a.HandleLogout)
			auth.GET("/:provider", a.HandleOAuthStart)
			auth.GET("/:provider/callback", a.HandleOAuthCallback)
		}

		applications := api.Group("/loan-applications")
		{
			applications.POST("", authenticated, a.HandleCreateLoanApplication)
			applications.GET("/:id", authenticated, a.HandleGetLoanApplication)
			applications.POST("/:id/submit", authenticated, a.HandleSubmitApplication)
			applications.POST("/:id/documents", authenticated, a.HandleUploadDocument)
			applications.GET("/:id/documents", authenticated, a.HandleGetDocument)

			// Back-office
			applications.PATCH("/:id/status", middleware.Admin(a.opts.AdminAPIKey), a.HandleUpdateApplicationStatus)
		}

		api.POST("/consultations", a.HandleCreateConsultation)

		api.GET("/blog-posts", a.HandleListBlogPosts)
		api.GET("/blog-posts/:slug", a.HandleGetBlogPost)

		api.POST("/calculate-emi", a.HandleCalculateEMI)
		api.POST("/calculate-emi/schedule", a.HandleAmortizationSchedule)
	}

	return router
}
