package notification

import (
	"fmt"

	"github.com/MatterDesk/MatterDesk/app/models"
)

// Content is a rendered notification: distinct subject, greeting,
// body and closing per notification type.
type Content struct {
	Subject  string
	Greeting string
	Body     string
	Closing  string
}

// urgencyTier labels a days-remaining figure for the deadline
// templates.
func urgencyTier(days int) string {
	switch {
	case days <= 0:
		return "CRITICAL"
	case days <= 1:
		return "URGENT"
	case days <= 3:
		return "HIGH"
	default:
		return "UPCOMING"
	}
}

// Render produces the per-type content for a notification. Unknown
// types fall through to a generic update template.
func Render(data Data) Content {
	title := data.MatterTitle
	if title == "" {
		title = "a matter"
	}

	switch data.Type {
	case models.NotificationTypePastDeadline:
		return Content{
			Subject:  fmt.Sprintf("OVERDUE: %s has passed its deadline", title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"The deadline for %s (%s) has passed. Please review the matter and take action as soon as possible.",
				title, data.NewValue),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeDeadline:
		days := 0
		if data.DaysUntilDeadline != nil {
			days = *data.DaysUntilDeadline
		}
		remaining := fmt.Sprintf("in %d days", days)
		switch days {
		case 0:
			remaining = "today"
		case 1:
			remaining = "tomorrow"
		}
		return Content{
			Subject:  fmt.Sprintf("[%s] Deadline %s: %s", urgencyTier(days), remaining, title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"The matter %s has a deadline %s (%s). Priority: %s.",
				title, remaining, data.NewValue, urgencyTier(days)),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeWorkflowChange:
		return Content{
			Subject:  fmt.Sprintf("Workflow stage updated: %s", title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"The workflow stage of %s moved from %q to %q.",
				title, data.OldValue, data.NewValue),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeBillingChange:
		return Content{
			Subject:  fmt.Sprintf("Billing status updated: %s", title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"The billing status of %s changed from %q to %q.",
				title, data.OldValue, data.NewValue),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeStatusChange:
		return Content{
			Subject:  fmt.Sprintf("Status updated: %s", title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"The status of %s changed from %q to %q.",
				title, data.OldValue, data.NewValue),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeRFE:
		return Content{
			Subject:  fmt.Sprintf("RFE received: %s", title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"A Request for Evidence was recorded on %s (status is now %q). Review the request and prepare the response before the response deadline.",
				title, data.NewValue),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeApproval:
		return Content{
			Subject:  fmt.Sprintf("Approved: %s", title),
			Greeting: "Good news,",
			Body: fmt.Sprintf(
				"The matter %s was approved (status is now %q).",
				title, data.NewValue),
			Closing: "— MatterDesk",
		}

	case models.NotificationTypeDenial:
		return Content{
			Subject:  fmt.Sprintf("Denied: %s", title),
			Greeting: "Hello,",
			Body: fmt.Sprintf(
				"The matter %s was denied (status is now %q). Review the decision and evaluate options for a motion or refiling.",
				title, data.NewValue),
			Closing: "— MatterDesk",
		}

	default:
		return Content{
			Subject:  fmt.Sprintf("Update on %s", title),
			Greeting: "Hello,",
			Body:     fmt.Sprintf("The matter %s was updated.", title),
			Closing:  "— MatterDesk",
		}
	}
}

// HTML renders the content as a simple HTML email body.
func (c Content) HTML() string {
	return fmt.Sprintf(
		"<html><body><p>%s</p><p>%s</p><p>%s</p></body></html>",
		c.Greeting, c.Body, c.Closing)
}

// Text renders the content as the plain-text alternative.
func (c Content) Text() string {
	return fmt.Sprintf("%s\n\n%s\n\n%s\n", c.Greeting, c.Body, c.Closing)
}
