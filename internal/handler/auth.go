package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/repository"
	"github.com/iliyamo/study-hall-booking/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	users      repository.UserStore
	secret     string
	accessTTL  time.Duration
	bcryptCost int
	log        *zap.Logger
}

func NewAuthHandler(users repository.UserStore, secret string, accessTTL time.Duration, bcryptCost int, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, secret: secret, accessTTL: accessTTL, bcryptCost: bcryptCost, log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=OWNER CUSTOMER"`
	Gender   string `json:"gender" validate:"omitempty,oneof=FEMALE MALE"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID     uint64        `json:"id"`
	Email  string        `json:"email"`
	Role   string        `json:"role"`
	Gender *model.Gender `json:"gender,omitempty"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register creates a user and returns an access token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	role := req.Role
	if role == "" {
		role = model.RoleCustomer
	}
	gender, _ := model.ParseGender(req.Gender) // validated above

	hash, err := utils.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		return writeError(c, h.log, err)
	}
	u := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
		Gender:       gender,
		IsActive:     true,
	}
	if err := h.users.CreateUser(c.Request().Context(), u); err != nil {
		return writeError(c, h.log, err)
	}
	return h.issue(c, http.StatusCreated, u)
}

// Login verifies credentials and returns a fresh access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	u, err := h.users.GetUserByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, model.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return writeError(c, h.log, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, http.StatusOK, u)
}

func (h *AuthHandler) issue(c echo.Context, status int, u *model.User) error {
	access, err := utils.NewAccessToken(h.secret, u.ID, u.Role, h.accessTTL)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(status, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role, Gender: u.Gender},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}
