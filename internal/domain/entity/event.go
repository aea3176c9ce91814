// Package entity contains the core business objects of the project.
package entity

// ChangeEvent is the database webhook payload delivered when a watched table
// changes. Only insert events carry a notification to push.
type ChangeEvent struct {
	Type   string             `json:"type"`   // Event kind: "INSERT", "UPDATE", "DELETE".
	Record NotificationRecord `json:"record"` // The inserted notification row.
}

// EventTypeInsert is the only event kind that triggers a push.
const EventTypeInsert = "INSERT"

// IsInsert reports whether this event should be processed.
func (e *ChangeEvent) IsInsert() bool {
	return e.Type == EventTypeInsert
}

// NotificationRecord is the inserted notification row. The upstream schema
// carried the notification text under both "message" and "body" at different
// times; Body wins when both are set.
type NotificationRecord struct {
	ID       string `json:"id"`                            // Row identifier.
	UserID   string `json:"user_id" validate:"required"`   // Recipient identifier.
	Title    string `json:"title" validate:"required"`     // Notification title.
	Message  string `json:"message"`                       // Legacy notification text.
	Body     string `json:"body,omitempty"`                // Notification text, preferred over Message.
	Category string `json:"type"`                          // Notification category (e.g. "info").
	FCMToken string `json:"fcm_token,omitempty"`           // Optional device token, bypasses the resolver.
}

// BodyText returns the notification text, preferring body over message.
// This precedence is observable client behavior and must not change.
func (r *NotificationRecord) BodyText() string {
	if r.Body != "" {
		return r.Body
	}

	return r.Message
}

// CategoryOrDefault returns the notification category, defaulting to "info".
func (r *NotificationRecord) CategoryOrDefault() string {
	if r.Category != "" {
		return r.Category
	}

	return "info"
}

// RecipientPushProfile is the read-only view of a recipient's push destination
// as stored in the external record store.
type RecipientPushProfile struct {
	FCMToken             string // Empty when the recipient has no registered device.
	NotificationsEnabled bool   // Defaults to true; only an explicit opt-out disables.
}

// EmptyProfile is the fail-soft resolution result: no token, notifications
// enabled. Downstream it yields a skipped outcome, never an error.
func EmptyProfile() *RecipientPushProfile {
	return &RecipientPushProfile{NotificationsEnabled: true}
}

// Deliverable reports whether a push can be attempted for this profile.
func (p *RecipientPushProfile) Deliverable() bool {
	return p.FCMToken != "" && p.NotificationsEnabled
}
