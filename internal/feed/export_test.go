package feed

import "context"

// HandleNotification exposes the payload path of PGNotifier without a
// database connection.
func (n *PGNotifier) HandleNotification(ctx context.Context, raw string) {
	n.handle(ctx, raw)
}
