package models

const DateLayout = "2006-01-02"

const (
	// MaxViewingMinutes caps a single viewing slot.
	MaxViewingMinutes = 480

	// DefaultMaxStayNights applies when config leaves booking.max_stay_nights empty.
	DefaultMaxStayNights = 365

	// DefaultNotificationPageSize is used when a list request has no limit.
	DefaultNotificationPageSize = 50

	// MaxNotificationPageSize bounds a single list request.
	MaxNotificationPageSize = 200

	// SummaryPreviewLength truncates conversation previews.
	SummaryPreviewLength = 120
)

// Side-effect journal statuses.
const (
	FailurePending  = "pending"
	FailureRetry    = "retry"
	FailureResolved = "resolved"
	FailureFailed   = "failed"
)
