package domain

import "time"

// NotificationType identifies why a patient is being notified.
type NotificationType string

const (
	NotificationTokenIssued    NotificationType = "TOKEN_ISSUED"
	NotificationPositionUpdate NotificationType = "POSITION_UPDATE"
	NotificationYourTurn       NotificationType = "YOUR_TURN"
	NotificationCancelled      NotificationType = "CANCELLED"
)

// NotificationStatus tracks delivery of a notification event.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// NotificationEvent is one outbound message for a ticket transition.
type NotificationEvent struct {
	ID            string
	TicketID      string
	Type          NotificationType
	Channel       string
	Recipient     string
	Message       string
	Status        NotificationStatus
	Attempt       int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	SentAt        *time.Time
}
