package handlers

import (
	"net/http"

	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/labstack/echo/v4"
)

type UserHandlers struct {
	users services.UserService
}

func NewUserHandlers(users services.UserService) *UserHandlers {
	return &UserHandlers{users: users}
}

// Register handles POST /users. The response never carries the password hash.
func (h *UserHandlers) Register(c echo.Context) error {
	var req models.UserInput
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, err := h.users.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}
