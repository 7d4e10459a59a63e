package model

import "time"

// NotificationType drives the bell list styling.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationDanger  NotificationType = "danger"
)

// Notification is an entry of the user's notification list, owned by the
// portal API.
type Notification struct {
	// ID is the unique identifier assigned by the API.
	ID string `json:"id"`

	// Title is the short heading shown in the bell list.
	Title string `json:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Type is one of info, success or danger.
	Type NotificationType `json:"type"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCount counts notifications with Read unset.
func UnreadCount(list []Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}
