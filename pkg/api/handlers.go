// Package api implements the /api endpoints.
package api

import (
	"github.com/nimburion/devserver/pkg/controller"
	"github.com/nimburion/devserver/pkg/items"
	"github.com/nimburion/devserver/pkg/server/router"
	"github.com/nimburion/devserver/pkg/version"
)

// Prefix is the path prefix of every API route.
const Prefix = "/api"

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// EchoRequest is the body of POST /api/echo.
type EchoRequest struct {
	Message *string `json:"message" validate:"required"`
}

// EchoResponse is the reply to POST /api/echo. Length counts bytes.
type EchoResponse struct {
	Echo   string `json:"echo"`
	Length int    `json:"length"`
}

// CreateItemRequest is the body of POST /api/items. Empty strings are accepted.
type CreateItemRequest struct {
	Name        *string `json:"name" validate:"required"`
	Description *string `json:"description" validate:"required"`
}

// Handler serves the API routes against an item store.
type Handler struct {
	store       *items.Store
	version     string
	environment string
}

// NewHandler creates a Handler. The store is owned by the caller.
func NewHandler(store *items.Store, environment string) *Handler {
	return &Handler{
		store:       store,
		version:     version.Current().Version,
		environment: environment,
	}
}

// Register mounts the API routes on r under Prefix. middleware applies to
// every API route, inside whatever r already uses.
func (h *Handler) Register(r router.Router, middleware ...router.MiddlewareFunc) {
	g := r.Group(Prefix, middleware...)
	g.GET("/health", h.Health)
	g.POST("/echo", h.Echo)
	g.GET("/items", h.ListItems)
	g.POST("/items", h.CreateItem)
}

// Health reports liveness with build and environment metadata.
func (h *Handler) Health(c router.Context) error {
	return controller.OK(c, HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		Environment: h.environment,
	})
}

// Echo returns the submitted message and its length in bytes.
func (h *Handler) Echo(c router.Context) error {
	var req EchoRequest
	if err := controller.BindJSON(c, &req); err != nil {
		return err
	}
	return controller.OK(c, EchoResponse{
		Echo:   *req.Message,
		Length: len(*req.Message),
	})
}

// ListItems returns every stored item in insertion order.
func (h *Handler) ListItems(c router.Context) error {
	return controller.OK(c, h.store.List())
}

// CreateItem stores a new item and returns it with 201.
func (h *Handler) CreateItem(c router.Context) error {
	var req CreateItemRequest
	if err := controller.BindJSON(c, &req); err != nil {
		return err
	}
	return controller.Created(c, h.store.Create(*req.Name, *req.Description))
}
