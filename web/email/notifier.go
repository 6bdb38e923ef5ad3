package email

import (
	"context"
	"fmt"
	"time"

	"membership-portal/payment/verify"

	"golang.org/x/time/rate"
)

// Notifier implements verify.Notifier over SMTP. Outbound mail is throttled
// so a burst of admin decisions cannot trip the provider's sending limits,
// and each send is bounded by a timeout so a stuck SMTP server cannot pile
// up goroutines.
type Notifier struct {
	limiter *rate.Limiter
	timeout time.Duration
}

func NewNotifier() *Notifier {
	return &Notifier{
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		timeout: 15 * time.Second,
	}
}

func (n *Notifier) Notify(recipient, kind string, payload map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification throttled: %w", err)
	}

	var subject, body string
	switch kind {
	case verify.NotifyPaymentVerified:
		subject = "Your payment has been verified"
		body = fmt.Sprintf(
			"Your payment %s of %s %s has been verified. Thank you!",
			payload["transaction_id"], payload["amount"], payload["currency"])
	case verify.NotifyPaymentRejected:
		subject = "Your payment could not be verified"
		body = fmt.Sprintf(
			"Your payment %s of %s %s was rejected.\n\nReason: %s\n\nPlease submit a new payment with a valid receipt.",
			payload["transaction_id"], payload["amount"], payload["currency"], payload["notes"])
	default:
		return fmt.Errorf("unknown notification kind: %s", kind)
	}

	done := make(chan error, 1)
	go func() {
		done <- SendEmail(recipient, subject, body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notification timed out: %w", ctx.Err())
	}
}
