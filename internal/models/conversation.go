package models

import "time"

// Роли реплик диалога.
const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

// Turn одна реплика диалога. Журнал сессии только дополняется.
type Turn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsDeleted bool      `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
