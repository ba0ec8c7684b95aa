package ws

import (
	"time"

	"github.com/google/uuid"
)

func newConnID() string {
	return uuid.NewString()
}

func wsPayload(conversationID, event string, info ConnInfo, reason string) map[string]any {
	duration := int64(0)
	if !info.ConnectedAt.IsZero() {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	return map[string]any{
		"ws": map[string]any{
			"kind":        "conversation",
			"resource_id": conversationID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": info.identity(),
	}
}
