// Package notifications pushes run summaries to an ntfy topic.
//
// NewService returns a no-op implementation when notifications.ntfy_topic is
// empty, so callers never branch on whether delivery is configured.
package notifications
