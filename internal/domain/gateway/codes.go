package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

// CodeCaptureRejected is returned when a pre-authorization cannot be captured.
const CodeCaptureRejected = "700.400.100"

var notificationSuccess = regexp.MustCompile(`^(000\.000\.|000\.100\.1|000\.[36])`)

// IsSuccess matches synchronous API responses.
func IsSuccess(code string) bool {
	return strings.HasPrefix(code, "000")
}

// IsNotificationSuccess matches asynchronous webhook notifications.
func IsNotificationSuccess(code string) bool {
	return notificationSuccess.MatchString(code)
}

// DescribeCode turns a failing result into a message for API callers.
func DescribeCode(code, description string) string {
	switch {
	case code == CodeCaptureRejected:
		return "Cannot capture payment. The pre-authorization may have been reverted, expired, or the capture amount exceeds the pre-authorized amount. Please check the pre-authorization status and try again."
	case strings.HasPrefix(code, "700"):
		return fmt.Sprintf("Payment gateway error: %s. Please verify the pre-authorization is still valid and try again.", description)
	default:
		return description
	}
}

// Troubleshooting is attached to capture rejections.
type Troubleshooting struct {
	PossibleCauses []string `json:"possibleCauses"`
	Suggestions    []string `json:"suggestions"`
}

// TroubleshootingFor returns hints for codes that have them, nil otherwise.
func TroubleshootingFor(code string) *Troubleshooting {
	if code != CodeCaptureRejected {
		return nil
	}
	return &Troubleshooting{
		PossibleCauses: []string{
			"Pre-authorization was reverted or expired",
			"Capture amount exceeds pre-authorized amount",
			"Pre-authorization was already captured",
			"Invalid payment workflow",
		},
		Suggestions: []string{
			"Verify the pre-authorization is still valid",
			"Check that the capture amount does not exceed the pre-authorized amount",
			"Ensure the pre-authorization has not been captured already",
			"Try creating a new pre-authorization if this one has expired",
		},
	}
}
