package routes

import (
	"github.com/gin-gonic/gin"

	"veriboard/internal/authz"
	"veriboard/internal/handlers"
	"veriboard/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	tokens middleware.SessionParser,
	authHandler *handlers.AuthHandler,
	employmentHandler *handlers.EmploymentHandler,
	companyHandler *handlers.CompanyHandler,
	adminHandler *handlers.AdminHandler,
) *gin.Engine {

	// ---- public
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/login", authHandler.Login)
		auth.POST("/verify-login-otp", authHandler.VerifyLoginOTP)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/verify-reset-code", authHandler.VerifyResetCode)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	// ---- protected
	api := r.Group("/api", middleware.AuthMiddleware(tokens))
	api.GET("/auth/me", authHandler.Me)

	// CANDIDATES
	candidates := api.Group("/candidates/me", middleware.RequireAccountTypes(authz.AccountCandidate))
	{
		candidates.POST("/employments", employmentHandler.Create)
		candidates.GET("/employments", employmentHandler.List)
		candidates.POST("/employments/:id/document", employmentHandler.SubmitDocument)
	}

	// EMPLOYMENTS (owner, linked company, admin; checked per record)
	employments := api.Group("/employments")
	{
		employments.GET("/:id/document", employmentHandler.DocumentURL)
		employments.GET("/:id/certificate", employmentHandler.Certificate)
	}

	// COMPANIES
	companies := api.Group("/companies", middleware.RequireAccountTypes(authz.AccountCompany))
	{
		companies.GET("/me", companyHandler.Me)
		companies.POST("/me/verification", companyHandler.SubmitVerification)
		companies.GET("/verification-requests", companyHandler.ListRequests)
		companies.POST("/verification-requests/:id/approve", companyHandler.Approve)
		companies.POST("/verification-requests/:id/reject", companyHandler.Reject)
	}

	// ADMIN
	admin := api.Group("/admin", middleware.RequireAccountTypes(authz.AccountAdmin))
	{
		admin.POST("/employments/:id/verify", adminHandler.VerifyEmployment)
		admin.POST("/employments/:id/reject", adminHandler.RejectEmployment)
		admin.GET("/companies/pending", adminHandler.PendingCompanies)
		admin.GET("/companies/:id/document", adminHandler.CompanyDocument)
		admin.POST("/companies/:id/verify", adminHandler.VerifyCompany)
		admin.POST("/companies/:id/reject", adminHandler.RejectCompany)
	}

	return r
}
