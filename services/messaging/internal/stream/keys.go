// Package stream implements the Redis Streams delivery plane: per-conversation
// streams, the all-conversations fanout stream, retention trimming, and
// per-client sync state.
package stream

// FanoutStream is the single stream every publication is mirrored onto; the
// consumer group reads it to broadcast into local WebSocket hubs.
const FanoutStream = "nova:stream:fanout:all-conversations"

// conversationStreamPrefix prefixes every per-conversation stream key.
const conversationStreamPrefix = "nova:stream:conversation:"

// conversationStreamPattern matches every per-conversation stream for SCAN.
const conversationStreamPattern = conversationStreamPrefix + "*"

// ConversationStream returns the stream key for one conversation.
func ConversationStream(conversationID string) string {
	return conversationStreamPrefix + conversationID
}

// Entry field names shared by publisher and consumer.
const (
	fieldMessage        = "message"
	fieldConversationID = "conversation_id"
	fieldStream         = "stream"
	fieldEntryID        = "entry_id"
)
