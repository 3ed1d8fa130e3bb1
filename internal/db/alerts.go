package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ingestion-service/internal/models"
)

// CreateAlert inserts a new alert row with its delivery flags.
func (d *DB) CreateAlert(ctx context.Context, alert models.Alert) error {
	query := `
    INSERT INTO alerts (
        id, user_id, parcel_id, sensor_id, category, severity, title, message,
        status, created_at, email_sent, telegram_sent, websocket_sent
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := d.Pool.Exec(ctx, query,
		alert.ID,
		alert.UserID,
		alert.ParcelID,
		alert.SensorID,
		alert.Category,
		alert.Severity,
		alert.Title,
		alert.Message,
		alert.Status,
		alert.CreatedAt,
		alert.Delivery.Email,
		alert.Delivery.Telegram,
		alert.Delivery.Websocket,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// HasRecentUnresolvedAlert reports whether an unresolved alert for the sensor
// exists in the given category since the cutoff. An empty severity matches
// any severity (used by the offline sweep cool-down).
func (d *DB) HasRecentUnresolvedAlert(ctx context.Context, sensorID string, category models.AlertCategory, severity models.AlertSeverity, since time.Time) (bool, error) {
	query := `
    SELECT COUNT(*)
    FROM alerts
    WHERE sensor_id = $1
      AND category = $2
      AND status NOT IN ($3, $4)
      AND created_at >= $5`
	args := []interface{}{sensorID, category, models.AlertResolved, models.AlertIgnored, since}

	if severity != "" {
		query += " AND severity = $6"
		args = append(args, severity)
	}

	var count int
	if err := d.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent alerts for sensor %s: %w", sensorID, err)
	}
	return count > 0, nil
}

// MarkAlertDelivery records per-channel delivery outcomes after dispatch.
func (d *DB) MarkAlertDelivery(ctx context.Context, alertID string, res models.DeliveryResult) error {
	query := `
    UPDATE alerts
    SET email_sent = $1, telegram_sent = $2, websocket_sent = $3
    WHERE id = $4`

	result, err := d.Pool.Exec(ctx, query, res.Email, res.Telegram, res.Websocket, alertID)
	if err != nil {
		return fmt.Errorf("failed to update alert delivery %s: %w", alertID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no alert updated for id %s", alertID)
	}
	return nil
}

// FindUserContact loads the delivery addresses for a user.
func (d *DB) FindUserContact(ctx context.Context, userID int) (models.UserContact, error) {
	query := `
    SELECT id, COALESCE(email, ''), COALESCE(telegram_chat_id, 0)
    FROM users
    WHERE id = $1`

	var contact models.UserContact
	err := d.Pool.QueryRow(ctx, query, userID).Scan(
		&contact.UserID,
		&contact.Email,
		&contact.TelegramChatID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserContact{}, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return models.UserContact{}, fmt.Errorf("failed to get contact for user %d: %w", userID, err)
	}
	return contact, nil
}
