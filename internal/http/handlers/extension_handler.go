// Extension directory HTTP handlers.
//
// This file exposes CRUD endpoints for the extension directory. All routes
// require a bearer token (see middleware.RequireAuth):
//   - GET    /api/extensions
//   - GET    /api/extensions/{id}
//   - POST   /api/extensions
//   - PUT    /api/extensions/{id}
//   - DELETE /api/extensions/{id}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/services"
)

// ExtensionRequest is the JSON payload for creating or replacing an extension.
type ExtensionRequest struct {
	// Destination: E.164 number or sip: URI.
	Number string `json:"number" example:"+15550001111"`
	// Dial code, 1-10 digits.
	Extension string `json:"extension" example:"101"`
}

// DeletedResponse acknowledges a deletion.
type DeletedResponse struct {
	Message string `json:"message" example:"Extension deleted successfully"`
}

func (r ExtensionRequest) input() services.ExtensionInput {
	return services.ExtensionInput{Number: r.Number, Extension: r.Extension}
}

// ListExtensions godoc
// @ID          listExtensions
// @Summary     List extensions
// @Tags        Extensions
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}   domain.Extension
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /extensions [get]
func (h *Handlers) ListExtensions(c *gin.Context) {
	list, err := h.extensions.List(c.Request.Context())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// GetExtension godoc
// @ID          getExtension
// @Summary     Get an extension
// @Tags        Extensions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Extension ID (UUID)"
// @Success     200  {object}  domain.Extension
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /extensions/{id} [get]
func (h *Handlers) GetExtension(c *gin.Context) {
	ext, err := h.extensions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, ext)
}

// CreateExtension godoc
// @ID          createExtension
// @Summary     Create an extension
// @Tags        Extensions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ExtensionRequest  true  "Extension"
// @Success     201   {object}  domain.Extension
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /extensions [post]
func (h *Handlers) CreateExtension(c *gin.Context) {
	var req ExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ext, err := h.extensions.Create(c.Request.Context(), req.input())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusCreated, ext)
}

// UpdateExtension godoc
// @ID          updateExtension
// @Summary     Replace an extension
// @Tags        Extensions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                     true  "Extension ID (UUID)"
// @Param       body  body      handlers.ExtensionRequest  true  "Extension"
// @Success     200   {object}  domain.Extension
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /extensions/{id} [put]
func (h *Handlers) UpdateExtension(c *gin.Context) {
	var req ExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ext, err := h.extensions.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, ext)
}

// DeleteExtension godoc
// @ID          deleteExtension
// @Summary     Delete an extension
// @Tags        Extensions
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Extension ID (UUID)"
// @Success     200  {object}  handlers.DeletedResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /extensions/{id} [delete]
func (h *Handlers) DeleteExtension(c *gin.Context) {
	if err := h.extensions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, DeletedResponse{Message: "Extension deleted successfully"})
}
