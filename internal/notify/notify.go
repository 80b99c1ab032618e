// Package notify delivers fire-and-forget desktop notifications over
// D-Bus, degrading to a no-op when no notification service is running.
package notify

// Urgency is the freedesktop notification priority.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification is one desktop notification. Chart notifications use low
// urgency and a finite timeout; nothing here warrants interrupting the
// user.
type Notification struct {
	Title   string
	Body    string
	Timeout int32 // ms, -1 = server default, 0 = never expire
	Urgency Urgency
}

// Notifier sends desktop notifications.
type Notifier interface {
	Notify(n Notification) error
}
