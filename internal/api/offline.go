package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/uday68/commandgrid-sub003/internal/model"
)

// IdempotencyHeader carries the offline operation ID on replay.
const IdempotencyHeader = "Idempotency-Key"

// Replay submits a queued offline operation. Retries are safe because the
// server deduplicates on the idempotency key.
func (c *Client) Replay(ctx context.Context, op model.OfflineOperation) error {
	_, err := c.doWithRetry(ctx, request{
		method: http.MethodPost,
		path:   "/api/offline/operations",
		body:   op,
		header: http.Header{IdempotencyHeader: []string{op.ID.String()}},
	})
	if err != nil {
		return fmt.Errorf("replay %s operation %s: %w", op.Type, op.ID, err)
	}
	return nil
}
