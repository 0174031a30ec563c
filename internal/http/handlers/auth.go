package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdmirek/askhub/internal/auth"
	"github.com/jdmirek/askhub/internal/cache"
	"github.com/jdmirek/askhub/internal/config"
	"github.com/jdmirek/askhub/internal/domain/user"
	"github.com/jdmirek/askhub/internal/http/middlewares"
	"github.com/jdmirek/askhub/internal/jobs"
	"github.com/jdmirek/askhub/internal/security"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name string) (user.User, error)
}

// JobEnqueuer pushes background work onto the queue. Welcome emails ride
// on it after signup.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, j jobs.Job) error
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	queue      JobEnqueuer
	profiles   *cache.Cache
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, queue JobEnqueuer, profiles *cache.Cache) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		queue:      queue,
		profiles:   profiles,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest carries no binding tags. Missing fields get a fixed
// message from the handler itself, before any store work.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Email, hash, req.Name)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		fmt.Println(err)
		return
	}

	token, err := h.jwt.Issue(u.ID)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.enqueueWelcomeEmail(cctx, u)

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   token,
		"data":    gin.H{"id": u.ID, "name": u.Name, "email": u.Email},
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// missing fields are answered before any store work
	if req.Email == "" || req.Password == "" {
		RespondBadRequest(ctx, "missing_credentials", "Please provide email and password", nil)
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
			return
		}

		RespondInternal(ctx, "Could not log in")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		// same status and body as the unknown-email case
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	token, err := h.jwt.Issue(foundUser.ID)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"data":    gin.H{"id": foundUser.ID, "name": foundUser.Name, "email": foundUser.Email},
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	if v, ok := h.profiles.Get(userID); ok {
		if u, ok := v.(user.User); ok {
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": u})
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// token outlived the row
			h.profiles.Delete(userID)
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not load profile")
		return
	}

	h.profiles.Set(userID, u)

	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}

// Helper functions

// enqueueWelcomeEmail is best effort. A lost welcome email never fails
// a signup.
func (h *AuthHandler) enqueueWelcomeEmail(ctx context.Context, u user.User) {
	payload := jobs.WelcomeEmailPayload{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.Name,
		RequestedAt: time.Now().UTC(),
	}

	raw, err := payload.JSON()

	if err != nil {
		fmt.Println("welcome email payload:", err)
		return
	}

	err = h.queue.Enqueue(ctx, jobs.New(jobs.TypeWelcomeEmail, raw))

	if err != nil {
		fmt.Println("welcome email enqueue:", err)
	}
}
