package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/service"
)

// AccountOps is the slice of the account service the handler needs.
type AccountOps interface {
	ListUsers(ctx context.Context, actorRole domain.Role) ([]domain.Profile, error)
	ListDistributorUsers(ctx context.Context, actorRole domain.Role, distributorID string) ([]domain.Profile, error)
	CreateUser(ctx context.Context, actorRole domain.Role, in service.NewUserInput) (*domain.Profile, error)
	AdjustCredits(ctx context.Context, actorRole domain.Role, actorID, profileID string, delta int64, note string) (*domain.Profile, error)
	ListOperations(ctx context.Context, actorRole domain.Role, identityID string, limit int64) ([]domain.Operation, error)
}

// AccountHandler serves the console's administrative CRUD endpoints.
type AccountHandler struct {
	accounts AccountOps
}

func NewAccountHandler(accounts AccountOps) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type createUserRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
	Name             string `json:"name"`
	Classification   string `json:"classification" validate:"required"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	Credits          int64  `json:"credits" validate:"gte=0"`
	DistributorID    string `json:"distributor_id"`
}

type adjustCreditsRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Note   string `json:"note"`
}

// Me returns the caller's own profile snapshot.
//
// @Summary      Current user profile
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  domain.Profile
// @Failure      401   {object}  map[string]string
// @Router       /v1/me [get]
func (h *AccountHandler) Me(c echo.Context) error {
	_, _, profile, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// ListUsers returns all profiles. Admin only.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200   {array}   domain.Profile
// @Failure      403   {object}  map[string]string
// @Router       /v1/admin/users [get]
func (h *AccountHandler) ListUsers(c echo.Context) error {
	role, _, _, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	users, err := h.accounts.ListUsers(c.Request().Context(), role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser provisions a credential record plus profile. Admin only.
//
// @Summary      Create a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  domain.Profile
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /v1/admin/users [post]
func (h *AccountHandler) CreateUser(c echo.Context) error {
	role, _, _, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.accounts.CreateUser(c.Request().Context(), role, service.NewUserInput{
		Email:            req.Email,
		Password:         req.Password,
		Name:             req.Name,
		Classification:   req.Classification,
		TwoFactorEnabled: req.TwoFactorEnabled,
		Credits:          req.Credits,
		DistributorID:    req.DistributorID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// AdjustCredits applies a credit delta to a profile. Admin only.
//
// @Summary      Adjust a user's credits
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Profile id"
// @Param        body  body      adjustCreditsRequest  true  "Credit delta"
// @Success      200   {object}  domain.Profile
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/admin/users/{id}/credits [post]
func (h *AccountHandler) AdjustCredits(c echo.Context) error {
	role, identityID, _, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req adjustCreditsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.accounts.AdjustCredits(c.Request().Context(), role, identityID, c.Param("id"), req.Amount, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// ListOperations returns the recent audit trail for an identity. Admin
// only.
//
// @Summary      List a user's operations
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true  "Identity id"
// @Success      200   {array}   domain.Operation
// @Failure      403   {object}  map[string]string
// @Router       /v1/admin/users/{id}/operations [get]
func (h *AccountHandler) ListOperations(c echo.Context) error {
	role, _, _, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	ops, err := h.accounts.ListOperations(c.Request().Context(), role, c.Param("id"), 50)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ops)
}

// ListDistributorUsers returns the caller's assigned profiles.
// Distributor only.
//
// @Summary      List a distributor's users
// @Tags         distributor
// @Produce      json
// @Security     BearerAuth
// @Success      200   {array}   domain.Profile
// @Failure      403   {object}  map[string]string
// @Router       /v1/distributor/users [get]
func (h *AccountHandler) ListDistributorUsers(c echo.Context) error {
	role, _, profile, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	users, err := h.accounts.ListDistributorUsers(c.Request().Context(), role, profile.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}
