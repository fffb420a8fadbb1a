package provider

import (
	"fmt"
	"strings"
	"time"
)

// SDKRejectedBlocked is the SDK level (N) that defined the rejected and
// blocked call types.
const SDKRejectedBlocked = 24

// DateLayout renders epoch milliseconds as yyyy-MM-dd HH:mm:ss.
const DateLayout = "2006-01-02 15:04:05"

// CallTypeLabel maps a CallLog.Calls.TYPE code. Codes the platform does not
// define at sdk render as "Unknown (code)".
func CallTypeLabel(code int64, sdk int) string {
	switch code {
	case 1:
		return "Incoming"
	case 2:
		return "Outgoing"
	case 3:
		return "Missed"
	case 4:
		return "Voicemail"
	case 5:
		if sdk >= SDKRejectedBlocked {
			return "Rejected"
		}
	case 6:
		if sdk >= SDKRejectedBlocked {
			return "Blocked"
		}
	}
	return unknown(code)
}

// SMSTypeLabel maps a Telephony.Sms.TYPE code.
func SMSTypeLabel(code int64) string {
	switch code {
	case 1:
		return "Inbox"
	case 2:
		return "Sent"
	case 3:
		return "Draft"
	case 4:
		return "Outbox"
	case 5:
		return "Failed"
	case 6:
		return "Queued"
	default:
		return unknown(code)
	}
}

func unknown(code int64) string {
	return fmt.Sprintf("Unknown (%d)", code)
}

// FormatDate renders epoch milliseconds in loc.
func FormatDate(millis int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(millis).In(loc).Format(DateLayout)
}

// MarkBodyNewlines inserts a backslash before every newline of an SMS body.
// The marker is not standard CSV and generic parsers will not undo it.
func MarkBodyNewlines(body string) string {
	return strings.ReplaceAll(body, "\n", "\\\n")
}
