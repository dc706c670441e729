package models

import "time"

// Имена справочных записей, создаваемых миграциями.
const (
	RoleStandardUser = "standard_user"
	PlanFree         = "free"
)

// Role роль пользователя.
type Role struct {
	ID          string
	Name        string
	Description string
}

// Plan тарифный план.
type Plan struct {
	ID           string
	Name         string
	Description  string
	Price        int64 // в минимальных единицах валюты
	UsageLimit   int
	BillingCycle string
	IsActive     bool
	DurationDays int
}

// UserSubscription подписка пользователя на тариф.
type UserSubscription struct {
	ID            string
	UserID        string
	PlanID        string
	DocumentsUsed int
	StartDate     time.Time
	EndDate       time.Time
	IsActive      bool
}
