// Auth HTTP handlers.
//
//   - POST /api/auth/register
//   - POST /api/auth/login
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/domain"
	"github.com/tbourn/go-call-router/internal/services"
)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Name     string `json:"name"     example:"Ada Lovelace"`
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

// RegisterResponse returns the created administrator (without password).
type RegisterResponse struct {
	Message string       `json:"message" example:"User registered successfully"`
	User    *domain.User `json:"user"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Message string `json:"message" example:"Login successful"`
	Token   string `json:"token"`
}

// Register godoc
// @ID          register
// @Summary     Register an administrator
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Registration"
// @Success     201   {object}  handlers.RegisterResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid input or email taken"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusCreated, RegisterResponse{Message: "User registered successfully", User: u})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.LoginResponse
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid credentials")
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{Message: "Login successful", Token: token})
}
