package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	HelpRequests *HelpRequestHandler
	Users        *UserHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts operational endpoints at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	if h.Metrics != nil {
		api.GET("/metrics/summary", h.Metrics.Summary)
	}

	if h.HelpRequests != nil {
		requests := api.Group("/help-requests")
		requests.POST("", h.HelpRequests.Create)
		requests.GET("", h.HelpRequests.List)
		requests.GET("/pending", h.HelpRequests.ListPending)
		requests.GET("/:id", h.HelpRequests.Get)
		requests.POST("/:id/accept", h.HelpRequests.Accept)
		requests.POST("/:id/decline", h.HelpRequests.Decline)
		requests.POST("/:id/complete", h.HelpRequests.Complete)
		requests.POST("/:id/cancel", h.HelpRequests.Cancel)
	}

	if h.Users != nil {
		users := api.Group("/users")
		users.POST("", h.Users.Register)
		users.GET("/volunteers", h.Users.ListVolunteers)
		users.GET("/requesters", h.Users.ListRequesters)
		users.GET("/admins", h.Users.ListAdmins)
		users.GET("/:id", h.Users.Get)
		users.PUT("/:id/location", h.Users.UpdateLocation)
		users.POST("/:id/verify", h.Users.Verify)
		users.PUT("/:id/availability", h.Users.SetAvailability)
	}
}
