// Package v1 exposes the front-end HTTP surface: ask, train and instance
// introspection. Transport only; all behavior lives in the pool, registry and
// dispatcher.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/bothub-it/bothub-nlp/internal/profile"
	"github.com/bothub-it/bothub-nlp/server/pool"
	"github.com/bothub-it/bothub-nlp/server/registry"
)

type APIV1Service struct {
	Profile    *profile.Profile
	Dispatcher *pool.Dispatcher
	Pool       *pool.Pool
	Registry   *registry.Registry
}

func NewAPIV1Service(profile *profile.Profile, dispatcher *pool.Dispatcher, p *pool.Pool, reg *registry.Registry) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		Dispatcher: dispatcher,
		Pool:       p,
		Registry:   reg,
	}
}

// RegisterRoutes wires the v1 endpoints onto the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	v1 := e.Group("/v1")
	v1.GET("/bots", s.askBot)
	// Alias kept for callers that reach a bot through a routing hop.
	v1.GET("/bots-redirect", s.askBot)
	v1.POST("/train-bot", s.trainBot)
	v1.GET("/instance", s.instanceStatus)
}
