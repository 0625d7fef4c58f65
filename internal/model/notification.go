package model

import "time"

// Kind identifies the category of event a notification describes.
type Kind string

const (
	KindNewComment       Kind = "new_comment"
	KindCommentReply     Kind = "comment_reply"
	KindRatingReceived   Kind = "rating_received"
	KindReactionReceived Kind = "reaction_received"
	KindReportFiled      Kind = "report_filed"
	KindReportResolved   Kind = "report_resolved"
)

// kindLabels maps the known kinds to their short display labels.
var kindLabels = map[Kind]string{
	KindNewComment:       "comment",
	KindCommentReply:     "reply",
	KindRatingReceived:   "rating",
	KindReactionReceived: "reaction",
	KindReportFiled:      "report",
	KindReportResolved:   "resolved",
}

// Known reports whether k is one of the recognized notification kinds.
func (k Kind) Known() bool {
	_, ok := kindLabels[k]
	return ok
}

// Label returns the display label for k. Unrecognized kinds fall back
// to a generic label instead of failing.
func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return "notice"
}

// Notification represents one event delivered to a recipient about
// activity on their notes.
type Notification struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id" db:"id"`

	// RecipientID is the identity that owns this notification.
	RecipientID string `json:"recipientId" db:"recipient_id"`

	// Kind is the event category. Unknown values are preserved as-is.
	Kind Kind `json:"kind" db:"kind"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// RelatedResourceID optionally references the note the notification
	// is about. When set the notification is navigable.
	RelatedResourceID *string `json:"relatedResourceId,omitempty" db:"related_resource_id"`

	// CreatedAt is when the underlying event occurred on the server.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Read indicates whether the recipient has seen this notification.
	Read bool `json:"read" db:"read"`
}

// Navigable reports whether the notification points at a resource.
func (n Notification) Navigable() bool {
	return n.RelatedResourceID != nil && *n.RelatedResourceID != ""
}
