package delivery

import "context"

// Mailer is the adapter interface for outbound mail.
// Implementations report failure through the returned error and must never
// panic past this boundary; the reminder loop depends on that. Sends carry
// no ordering requirement and are safe to repeat.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}
