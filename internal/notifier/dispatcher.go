package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ingestion-service/internal/config"
	"ingestion-service/internal/models"
)

// ContactResolver looks up a user's delivery addresses.
type ContactResolver interface {
	FindUserContact(ctx context.Context, userID int) (models.UserContact, error)
}

// Dispatcher fans one alert out over every configured channel. Channel
// failures are logged and reported as false flags; they never propagate.
type Dispatcher struct {
	cfg      config.Config
	contacts ContactResolver
	hub      *Hub
	telegram *telegramSender
	limiter  *rate.Limiter
	logger   *logrus.Logger
}

func NewDispatcher(cfg config.Config, contacts ContactResolver, hub *Hub, logger *logrus.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		contacts: contacts,
		hub:      hub,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Telegram.RatePerSecond), cfg.Telegram.RatePerSecond),
		logger:   logger,
	}
	if cfg.Telegram.BotToken != "" {
		sender, err := newTelegramSender(cfg.Telegram.BotToken)
		if err != nil {
			logger.Errorf("telegram channel disabled: %v", err)
		} else {
			d.telegram = sender
		}
	}
	return d
}

// Deliver attempts every channel and returns the per-channel outcome.
func (d *Dispatcher) Deliver(ctx context.Context, userID int, alert models.Alert) models.DeliveryResult {
	var res models.DeliveryResult

	contact, err := d.contacts.FindUserContact(ctx, userID)
	if err != nil {
		d.logger.WithField("user_id", userID).Errorf("contact lookup failed: %v", err)
		// Websocket push needs no address book entry.
		res.Websocket = d.hub.SendAlert(userID, alert)
		return res
	}

	if contact.Email != "" {
		if err := d.sendEmail(contact.Email, alert); err != nil {
			d.logger.WithField("user_id", userID).Errorf("email delivery failed: %v", err)
		} else {
			res.Email = true
		}
	}

	if d.telegram != nil && contact.TelegramChatID != 0 {
		if err := d.sendTelegram(ctx, contact.TelegramChatID, alert); err != nil {
			d.logger.WithField("user_id", userID).Errorf("telegram delivery failed: %v", err)
		} else {
			res.Telegram = true
		}
	}

	res.Websocket = d.hub.SendAlert(userID, alert)
	return res
}
