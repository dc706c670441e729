// Package models содержит доменные сущности сервиса: пользователей, роли,
// тарифы и подписки, реплики диалогов, лист ожидания, документы и письма.
package models

import "time"

// ProviderDirect регистрация по email и паролю.
const ProviderDirect = "direct"

// User представляет зарегистрированного пользователя системы.
// Пользователи не удаляются, только деактивируются.
type User struct {
	ID                  string
	Email               string
	FirstName           string
	LastName            string
	Username            string
	PasswordHash        *string // nil у пользователей, пришедших через OAuth
	Provider            string
	ProfilePicture      string
	RoleID              string
	SubscriptionPlanID  string
	IsActive            bool
	IsSuperuser         bool
	IsEmailVerified     bool
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasPassword сообщает, можно ли войти по паролю.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserView представление пользователя в ответах API.
type UserView struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName,omitempty"`
	Username        string `json:"username"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	ProfilePicture  string `json:"profilePicture,omitempty"`
}

// View возвращает публичное представление пользователя.
func (u *User) View() UserView {
	return UserView{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Username:        u.Username,
		IsEmailVerified: u.IsEmailVerified,
		ProfilePicture:  u.ProfilePicture,
	}
}

// NewUser входные данные для создания пользователя.
type NewUser struct {
	Email          string
	FirstName      string
	LastName       string
	Password       string
	Provider       string
	ProfilePicture string
}

// ProfileUpdate изменяемые поля профиля. nil означает "не менять".
type ProfileUpdate struct {
	FirstName      *string
	LastName       *string
	ProfilePicture *string
}

// UserFilter перечисленные ключи фильтрации пользователей.
// Пустые поля не участвуют в выборке.
type UserFilter struct {
	Email    string
	Username string
	Provider string
	Active   *bool
	Limit    int
	Offset   int
}
