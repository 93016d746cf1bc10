package kafka

import "strings"

// Topic names form a closed set. Producers and consumers refer to these
// constants; anything else is a configuration error caught at startup. User
// lifecycle events are the exception: they publish one topic per event type,
// derived by UserEventTopic.
const (
	TopicCDCPosts           = "cdc.posts"
	TopicCDCFollows         = "cdc.follows"
	TopicCDCComments        = "cdc.comments"
	TopicCDCLikes           = "cdc.likes"
	TopicFeedEvents         = "feed.events"
	TopicFeedInvalidate     = "feed.invalidate"
	TopicMessagingEvents    = "messaging.events"
	TopicNotificationEvents = "notification.events"
)

// userTopicPrefix turns a user event type into its topic name.
const userTopicPrefix = "identity."

// UserEventTopic returns the topic one user lifecycle event type publishes on,
// e.g. identity.user.created.
func UserEventTopic(eventType string) string {
	return userTopicPrefix + eventType
}

// UserEventTopics lists every user lifecycle topic, for consumers that follow
// the whole family.
func UserEventTopics() []string {
	return []string{
		UserEventTopic(EventUserCreated),
		UserEventTopic(EventUserProfileUpdated),
		UserEventTopic(EventUserPasswordChanged),
		UserEventTopic(EventUserTwoFAEnabled),
		UserEventTopic(EventUserDeleted),
	}
}

// DLQTopicPrefix prefixes every dead-letter topic.
const DLQTopicPrefix = "dlq"

// DLQTopic constructs the dead-letter topic name for a source topic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

// Registered event types. The envelope constructor rejects anything outside
// this set, so a typo fails at publish time rather than at the consumer.
const (
	EventUserCreated         = "user.created"
	EventUserProfileUpdated  = "user.profile_updated"
	EventUserPasswordChanged = "user.password_changed"
	EventUserTwoFAEnabled    = "user.two_fa_enabled"
	EventUserDeleted         = "user.deleted"

	EventPostCreated   = "post.created"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
	EventFollowCreated = "follow.created"
	EventFollowDeleted = "follow.deleted"
	EventCommentAdded  = "comment.added"
	EventLikeAdded     = "like.added"
	EventLikeRemoved   = "like.removed"

	EventFeedInvalidate = "feed.invalidate"

	EventMessageSent = "message.sent"

	EventNotificationRequested = "notification.requested"
	EventNotificationSent      = "notification.sent"
	EventNotificationFailed    = "notification.failed"
)

var registeredEventTypes = map[string]struct{}{
	EventUserCreated:           {},
	EventUserProfileUpdated:    {},
	EventUserPasswordChanged:   {},
	EventUserTwoFAEnabled:      {},
	EventUserDeleted:           {},
	EventPostCreated:           {},
	EventPostUpdated:           {},
	EventPostDeleted:           {},
	EventFollowCreated:         {},
	EventFollowDeleted:         {},
	EventCommentAdded:          {},
	EventLikeAdded:             {},
	EventLikeRemoved:           {},
	EventFeedInvalidate:        {},
	EventMessageSent:           {},
	EventNotificationRequested: {},
	EventNotificationSent:      {},
	EventNotificationFailed:    {},
}

// IsRegisteredEventType reports whether eventType belongs to the closed registry.
func IsRegisteredEventType(eventType string) bool {
	_, ok := registeredEventTypes[eventType]
	return ok
}

// TopicForEventType maps an event type to the topic it is published on.
func TopicForEventType(eventType string) (string, bool) {
	switch {
	case strings.HasPrefix(eventType, "user."):
		return UserEventTopic(eventType), true
	case strings.HasPrefix(eventType, "post."),
		strings.HasPrefix(eventType, "follow."),
		strings.HasPrefix(eventType, "comment."),
		strings.HasPrefix(eventType, "like."):
		return TopicFeedEvents, true
	case eventType == EventFeedInvalidate:
		return TopicFeedInvalidate, true
	case eventType == EventMessageSent:
		return TopicMessagingEvents, true
	case strings.HasPrefix(eventType, "notification."):
		return TopicNotificationEvents, true
	default:
		return "", false
	}
}

// CompositeKey joins parts into a single partition key so related aggregates
// land on the same partition and stay ordered relative to each other.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, ":")
}
