package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"resumegenie/internal/shared/auth"
	"resumegenie/internal/shared/server/middleware"
	"resumegenie/internal/shared/server/respond"
)

// TokenIssuer mints bearer tokens for an email.
type TokenIssuer interface {
	Issue(email string) (string, error)
}

type Handler struct {
	Svc    *Service
	Tokens TokenIssuer
}

func NewHandler(svc *Service, tokens TokenIssuer) *Handler {
	return &Handler{Svc: svc, Tokens: tokens}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type profileUpdateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Email       string `json:"email"`
	Credits     int    `json:"credits"`
}

// RegisterRoutes attaches the account endpoints to rg (mounted at /auth).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/signup", h.signup)
	rg.POST("/login", h.login)
	rg.POST("/logout", h.logout)

	private := rg.Group("", middleware.RequireUser())
	private.GET("/me", h.me)
	private.GET("/profile", h.profile)
	private.PUT("/profile", h.updateProfile)
}

func (h *Handler) signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "email and password are required", nil)
		return
	}
	user, err := h.Svc.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}
	respond.Created(c, gin.H{
		"success": true,
		"message": "User created successfully",
		"email":   user.Email,
		"credits": user.Credits,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
			return
		}
	} else {
		req.Username = c.PostForm("username")
		req.Email = c.PostForm("email")
		req.Password = c.PostForm("password")
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	if strings.TrimSpace(email) == "" || req.Password == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "email and password are required", nil)
		return
	}

	user, err := h.Svc.Authenticate(c.Request.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to log in", nil)
		return
	}
	h.writeToken(c, user)
}

// logout is stateless: tokens expire on their own.
func (h *Handler) logout(c *gin.Context) {
	respond.OK(c, gin.H{"success": true, "message": "Logged out successfully"})
}

func (h *Handler) me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	respond.OK(c, gin.H{"email": user.Email, "credits": user.Credits})
}

func (h *Handler) profile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	respond.OK(c, gin.H{
		"success":    true,
		"email":      user.Email,
		"credits":    user.Credits,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	current := middleware.UserEmailFromContext(c)
	user, err := h.Svc.UpdateProfile(c.Request.Context(), current, req.Email, req.Password)
	if err != nil {
		h.writeAccountError(c, err)
		return
	}

	resp := gin.H{
		"success": true,
		"message": "User updated successfully",
		"email":   user.Email,
	}
	if user.Email != NormalizeEmail(current) {
		token, err := h.Tokens.Issue(user.Email)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
			return
		}
		resp["access_token"] = token
		resp["token_type"] = auth.TokenType
	}
	respond.OK(c, resp)
}

func (h *Handler) currentUser(c *gin.Context) (User, bool) {
	user, err := h.Svc.GetByEmail(c.Request.Context(), middleware.UserEmailFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The token outlived the account (or its old email).
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "account not found", nil)
			return User{}, false
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return User{}, false
	}
	return user, true
}

func (h *Handler) writeToken(c *gin.Context, user User) {
	token, err := h.Tokens.Issue(user.Email)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	respond.OK(c, tokenResponse{
		AccessToken: token,
		TokenType:   auth.TokenType,
		Email:       user.Email,
		Credits:     user.Credits,
	})
}

func (h *Handler) writeAccountError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "email_taken", "Email already registered", nil)
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", err.Error(), nil)
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_error", "password is too long", nil)
	case errors.Is(err, ErrNothingToUpdate):
		respond.Error(c, http.StatusBadRequest, "nothing_to_update", "No valid fields to update", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "account update failed", nil)
	}
}
