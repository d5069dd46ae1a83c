package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateUnknown, "unknown"},
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{ConnectionState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestConnectionStateJSON(t *testing.T) {
	data, err := json.Marshal(map[string]ConnectionState{"state": StateConnected})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"state":"connected"}` {
		t.Errorf("json = %s, want %s", data, `{"state":"connected"}`)
	}
}

func TestMessageWireNames(t *testing.T) {
	raw := `{
		"message_id": "m1",
		"room_id": "r1",
		"user_id": "u1",
		"sender_name": "Ada",
		"message": "hello",
		"created_at": "2024-01-15T10:30:45Z"
	}`

	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if m.Content != "hello" {
		t.Errorf("Content = %q, want %q", m.Content, "hello")
	}
	if m.SenderName != "Ada" {
		t.Errorf("SenderName = %q, want %q", m.SenderName, "Ada")
	}
	want := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	if !m.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", m.CreatedAt, want)
	}
}

func TestOfflineOperationRoundTripKeepsPayload(t *testing.T) {
	op := OfflineOperation{
		ID:        uuid.New(),
		Type:      OpData,
		Payload:   json.RawMessage(`{"task_id":7,"status":"done"}`),
		Timestamp: time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC),
	}

	data, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got OfflineOperation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.ID != op.ID {
		t.Errorf("ID = %v, want %v", got.ID, op.ID)
	}
	if string(got.Payload) != string(op.Payload) {
		t.Errorf("Payload = %s, want %s", got.Payload, op.Payload)
	}
}
