package main

import (
	"database/sql"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/bridge"
	"callbridge/internal/cdr"
	"callbridge/internal/config"
	"callbridge/internal/httpapi"
	"callbridge/internal/routing"
	"callbridge/internal/telephony"

	"github.com/gin-gonic/gin"
)

func httpHandlers(
	cfg config.Config,
	m *auth.Manager,
	orch *bridge.Orchestrator,
	cdrSvc *cdr.Service,
	auditSvc *audit.Service,
	auditList audit.Lister,
	pins *routing.MemoryPinStore,
	ctl telephony.Controller,
	db *sql.DB,
) httpapi.Handlers {
	return httpapi.Handlers{
		Auth:               m,
		Bridge:             orch,
		CDRs:               cdrSvc,
		Audit:              auditSvc,
		AuditLog:           auditList,
		Pins:               pins,
		Controller:         ctl,
		DB:                 db,
		OperatorName:       cfg.Auth.OperatorName,
		OperatorPassword:   cfg.Auth.OperatorPassword,
		DefaultCustomerURI: cfg.Bridge.CustomerURI,
	}
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to
// internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, m *auth.Manager) {
	// public
	r.GET("/healthz", h.Health)
	r.POST("/v1/auth/token", h.IssueToken)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireToken(m))
	{
		v1.GET("/sessions", auth.RequireRole(auth.RoleViewer), h.ListSessions)
		v1.GET("/sessions/:id", auth.RequireRole(auth.RoleViewer), h.GetSession)
		v1.GET("/cdrs", auth.RequireRole(auth.RoleViewer), h.ListCallRecords)
		v1.GET("/stats", auth.RequireRole(auth.RoleViewer), h.Stats)

		// admin-only controls
		v1.POST("/calls", auth.RequireRole(auth.RoleAdmin), h.StartCall)
		v1.POST("/sessions/:id/hangup", auth.RequireRole(auth.RoleAdmin), h.HangupSession)
		v1.GET("/audit", auth.RequireRole(auth.RoleAdmin), h.ListAudit)

		agents := v1.Group("/agents")
		agents.Use(auth.RequireRole(auth.RoleAdmin))
		{
			agents.POST("/pin", h.PinAgent)
			agents.DELETE("/pin", h.UnpinAgent)
		}
	}
}
