package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/gregdel/pushover"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// PushoverNotifier delivers fired reminders as Pushover push messages.
// Sends are rate limited so a re-arm storm cannot flood the account.
type PushoverNotifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	limiter   *rate.Limiter
	log       zerolog.Logger
}

func NewPushoverNotifier(apiToken, userKey string, perMinute int, log zerolog.Logger) *PushoverNotifier {
	if perMinute <= 0 {
		perMinute = 6
	}
	return &PushoverNotifier{
		app:       pushover.New(apiToken),
		recipient: pushover.NewRecipient(userKey),
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		log:       log.With().Str("component", "pushover").Logger(),
	}
}

func (p *PushoverNotifier) Send(ctx context.Context, n Notification) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pushover rate limit: %w", err)
	}

	body := n.Medication
	if n.Dose != "" {
		body = fmt.Sprintf("%s: %s", n.Medication, n.Dose)
	}
	message := pushover.NewMessageWithTitle(body, "Medication reminder")
	message.Timestamp = n.FiredAt / 1000

	if _, err := p.app.SendMessage(message, p.recipient); err != nil {
		return fmt.Errorf("pushover send: %w", err)
	}

	p.log.Debug().Str("medication_id", n.Payload.MedicationID).Msg("push sent")
	return nil
}
