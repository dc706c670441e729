package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// GetRoleByName возвращает роль по имени.
func (s *Storage) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	const op = "storage.GetRoleByName"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var r models.Role
	query := `SELECT id, name, description FROM roles WHERE name = $1`
	if err := s.q.QueryRowContext(ctx, query, name).Scan(&r.ID, &r.Name, &r.Description); err != nil {
		return nil, mapError(op, err)
	}
	return &r, nil
}

// GetPlanByName возвращает активный тариф по имени.
func (s *Storage) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	const op = "storage.GetPlanByName"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var p models.Plan
	query := `SELECT id, name, description, price, usage_limit, billing_cycle, is_active, duration_days
			  FROM subscription_plans
			  WHERE name = $1 AND is_active`
	if err := s.q.QueryRowContext(ctx, query, name).Scan(&p.ID, &p.Name, &p.Description, &p.Price,
		&p.UsageLimit, &p.BillingCycle, &p.IsActive, &p.DurationDays); err != nil {
		return nil, mapError(op, err)
	}
	return &p, nil
}

// CreateUserSubscription сохраняет подписку пользователя на тариф.
func (s *Storage) CreateUserSubscription(ctx context.Context, sub *models.UserSubscription) error {
	const op = "storage.CreateUserSubscription"
	if err := ctxErr(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO user_subscriptions (user_id, plan_id, documents_used, start_date, end_date, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	if err := s.q.QueryRowContext(ctx, query, sub.UserID, sub.PlanID, sub.DocumentsUsed,
		sub.StartDate, sub.EndDate, sub.IsActive).Scan(&sub.ID); err != nil {
		return mapError(op, err)
	}
	return nil
}

// GetActiveSubscription возвращает действующую подписку пользователя.
func (s *Storage) GetActiveSubscription(ctx context.Context, userID string) (*models.UserSubscription, error) {
	const op = "storage.GetActiveSubscription"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var sub models.UserSubscription
	query := `SELECT id, user_id, plan_id, documents_used, start_date, end_date, is_active
			  FROM user_subscriptions
			  WHERE user_id = $1 AND is_active AND end_date > NOW()
			  ORDER BY end_date DESC
			  LIMIT 1`
	if err := s.q.QueryRowContext(ctx, query, userID).Scan(&sub.ID, &sub.UserID, &sub.PlanID,
		&sub.DocumentsUsed, &sub.StartDate, &sub.EndDate, &sub.IsActive); err != nil {
		return nil, mapError(op, err)
	}
	return &sub, nil
}

// IncrementDocumentsUsed увеличивает счётчик документов в действующей подписке.
func (s *Storage) IncrementDocumentsUsed(ctx context.Context, subscriptionID string) error {
	const op = "storage.IncrementDocumentsUsed"
	return s.execOne(ctx, op,
		`UPDATE user_subscriptions SET documents_used = documents_used + 1 WHERE id = $1`, subscriptionID)
}

// CountUserSubscriptions количество подписок пользователя.
func (s *Storage) CountUserSubscriptions(ctx context.Context, userID string) (int, error) {
	const op = "storage.CountUserSubscriptions"
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_subscriptions WHERE user_id = $1`, userID).
		Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
