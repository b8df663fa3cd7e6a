package dto

import "github.com/GregMSThompson/insight-portal/internal/models"

type CreateUserRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Name     string          `json:"name"`
	Type     models.UserType `json:"type"`
}

type UpdateUserRequest struct {
	Email    *string          `json:"email,omitempty"`
	Password *string          `json:"password,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Type     *models.UserType `json:"type,omitempty"`
}
