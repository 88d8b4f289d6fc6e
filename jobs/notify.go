package jobs

import (
	"context"
	"fmt"

	"github.com/meridianbank/meridianbank/internal/closure"
)

// BreakNotifier enqueues a notification mail after an account break. It
// satisfies closure.Notifier; delivery happens asynchronously on the
// worker.
type BreakNotifier struct {
	client *Client
	to     string
}

// NewBreakNotifier constructs a BreakNotifier addressing the back-office
// operations mailbox.
func NewBreakNotifier(client *Client, to string) *BreakNotifier {
	return &BreakNotifier{client: client, to: to}
}

// AccountBroken enqueues the break notification.
func (n *BreakNotifier) AccountBroken(ctx context.Context, notice closure.BreakNotice) error {
	if n == nil || n.client == nil {
		return nil
	}
	subject := fmt.Sprintf("%s account %d broken", notice.Family, notice.AccountID)
	body := fmt.Sprintf(
		"Customer %d broke %s account %d.\nTransferred %.2f to savings account %d (penalty %.2f).",
		notice.CustomerID, notice.Family, notice.AccountID,
		notice.Transfer, notice.SavingsAccountID, notice.Penalty)
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      n.to,
		Subject: subject,
		Body:    body,
	})
	return err
}
