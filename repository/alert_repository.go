package repository

import (
	"context"
	"fmt"
	"time"

	"priceradar/database"
	"priceradar/models"
)

type AlertRepository struct{}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{}
}

// SetPriceAlert creates a new price alert for a product.
func (r *AlertRepository) SetPriceAlert(ctx context.Context, productID int, targetPrice float64, alertType string, percentage float64) (*models.PriceAlert, error) {
	query := `
		INSERT INTO price_alerts (product_id, target_price, alert_type, percentage, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, product_id, target_price, alert_type, percentage, is_active, created_at, triggered_at
	`

	var alert models.PriceAlert
	err := database.DB.QueryRowContext(ctx, query, productID, targetPrice, alertType, percentage, time.Now()).Scan(
		&alert.ID, &alert.ProductID, &alert.TargetPrice,
		&alert.AlertType, &alert.Percentage, &alert.IsActive,
		&alert.CreatedAt, &alert.TriggeredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set price alert: %v", err)
	}

	return &alert, nil
}

// GetActiveAlerts returns untriggered active alerts for a product.
func (r *AlertRepository) GetActiveAlerts(ctx context.Context, productID int) ([]models.PriceAlert, error) {
	query := `
		SELECT id, product_id, target_price, alert_type, percentage, is_active, created_at, triggered_at
		FROM price_alerts
		WHERE product_id = $1 AND is_active = true AND triggered_at IS NULL
	`

	rows, err := database.DB.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active alerts: %v", err)
	}
	defer rows.Close()

	var alerts []models.PriceAlert
	for rows.Next() {
		var alert models.PriceAlert
		err := rows.Scan(
			&alert.ID, &alert.ProductID, &alert.TargetPrice,
			&alert.AlertType, &alert.Percentage, &alert.IsActive,
			&alert.CreatedAt, &alert.TriggeredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price alert: %v", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// TriggerAlert marks an alert as triggered.
func (r *AlertRepository) TriggerAlert(ctx context.Context, alertID int) error {
	query := `UPDATE price_alerts SET triggered_at = $1 WHERE id = $2`
	_, err := database.DB.ExecContext(ctx, query, time.Now(), alertID)
	if err != nil {
		return fmt.Errorf("failed to trigger alert: %v", err)
	}
	return nil
}

// CheckAlerts evaluates a product's active alerts against a freshly observed
// price and marks the ones that fire. The caller hands triggered alerts to
// the external dispatcher; delivery is not this pipeline's concern.
func (r *AlertRepository) CheckAlerts(ctx context.Context, productID int, currentPrice, originalPrice float64) ([]models.PriceAlert, error) {
	alerts, err := r.GetActiveAlerts(ctx, productID)
	if err != nil {
		return nil, err
	}

	var triggered []models.PriceAlert
	for _, alert := range alerts {
		shouldTrigger := false

		switch alert.AlertType {
		case "price_drop":
			if currentPrice <= alert.TargetPrice {
				shouldTrigger = true
			}
		case "percentage_drop":
			if originalPrice > 0 {
				drop := ((originalPrice - currentPrice) / originalPrice) * 100
				if drop >= alert.Percentage {
					shouldTrigger = true
				}
			}
		}

		if shouldTrigger {
			if err := r.TriggerAlert(ctx, alert.ID); err != nil {
				continue
			}
			now := time.Now()
			alert.TriggeredAt = &now
			triggered = append(triggered, alert)
		}
	}

	return triggered, nil
}
