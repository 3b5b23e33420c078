package main

import (
	"database/sql"
	"time"

	"outreach-platform/internal/httpapi"
	"outreach-platform/internal/rbac"
	"outreach-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: Placeholder login; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// POLICY routes: the send-attempt orchestrator's entry points.
		pol := v1.Group("/policy")
		pol.Use(rbac.RequireAnyRole(rbac.RoleAgent))
		{
			pol.POST("/decisions", h.Decide)
			pol.POST("/attempts", h.RecordAttempt)
		}

		// IDENTITY circuit routes.
		identities := v1.Group("/identities")
		{
			identities.GET("", rbac.RequireAnyRole(rbac.RoleAnalyst, rbac.RoleOperator), h.ListIdentities)
			identities.GET("/open", rbac.RequireAnyRole(rbac.RoleAnalyst, rbac.RoleOperator), h.ListOpenIdentities)

			reports := rbac.RequireAnyRole(rbac.RoleAgent)
			identities.POST("/:identity_id/success", reports, h.ReportIdentitySuccess)
			identities.POST("/:identity_id/failure", reports, h.ReportIdentityFailure)

			resets := rbac.RequireAnyRole(rbac.RoleOperator)
			identities.POST("/reset", resets, h.ResetAllIdentities)
			identities.POST("/:identity_id/reset", resets, h.ResetIdentity)
		}

		// RECIPIENT engagement routes.
		recipients := v1.Group("/recipients")
		recipients.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleOperator))
		{
			recipients.GET("/:recipient_id/engagement", h.GetEngagement)
			recipients.PATCH("/:recipient_id/engagement", h.UpdateEngagement)
			recipients.POST("/:recipient_id/objection/resolve", h.ResolveObjection)
		}

		// MAINTENANCE routes: the external scheduler's trigger points.
		mnt := v1.Group("/maintenance")
		mnt.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		{
			mnt.POST("/daily", h.RunDailyMaintenance)
			mnt.POST("/weekly", h.RunWeeklyMaintenance)
			mnt.POST("/decay", h.RunDecay)
			mnt.POST("/cooling-off/expire", h.RunCoolingOffExpiry)
		}

		// REPORT routes.
		v1.GET("/reports/engagement", rbac.RequireAnyRole(rbac.RoleAnalyst, rbac.RoleOperator), h.EngagementReport)
	}
}
