package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/uday68/commandgrid-sub003/internal/model"
)

// MessagesResponse is the response from the room history endpoint.
type MessagesResponse struct {
	Messages []model.Message `json:"messages"`
}

// FetchMessages returns the ordered message history of a room, oldest first.
func (c *Client) FetchMessages(ctx context.Context, roomID string) ([]model.Message, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	var resp MessagesResponse
	path := "/api/chat/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch messages for room %s: %w", roomID, err)
	}

	return resp.Messages, nil
}
