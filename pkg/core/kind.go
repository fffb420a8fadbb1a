// Package core provides the export model types for dumpcontact.
package core

import (
	"fmt"
	"strings"
)

// Kind identifies one of the three exportable data sets.
type Kind int

const (
	KindCallLog  Kind = iota // Call history
	KindSMS                  // SMS messages
	KindContacts             // Contacts with phone numbers and emails
)

// AllKinds lists every kind in the order the "all" command exports them.
var AllKinds = []Kind{KindCallLog, KindSMS, KindContacts}

// Column labels. These are both the Record keys and the CSV header labels.
const (
	ColDate         = "Date"
	ColNumber       = "Number"
	ColCachedName   = "Cached Name"
	ColType         = "Type"
	ColDuration     = "Duration (s)"
	ColAddress      = "Address"
	ColBody         = "Body"
	ColName         = "Name"
	ColPhoneNumbers = "PhoneNumbers"
	ColEmails       = "Emails"
)

// String returns the identifier used in file names and history rows.
func (k Kind) String() string {
	switch k {
	case KindCallLog:
		return "call_log"
	case KindSMS:
		return "sms"
	case KindContacts:
		return "contacts"
	default:
		return "unknown"
	}
}

// Label returns the human-readable name used in notifications.
func (k Kind) Label() string {
	switch k {
	case KindCallLog:
		return "Call log"
	case KindSMS:
		return "SMS messages"
	case KindContacts:
		return "Contacts"
	default:
		return "Unknown"
	}
}

// Noun returns the label for use inside a sentence ("No call log to export.").
func (k Kind) Noun() string {
	if k == KindSMS {
		return k.Label()
	}
	return strings.ToLower(k.Label())
}

// Columns returns the fixed, ordered column set for the kind.
func (k Kind) Columns() []string {
	switch k {
	case KindCallLog:
		return []string{ColDate, ColNumber, ColCachedName, ColType, ColDuration}
	case KindSMS:
		return []string{ColDate, ColAddress, ColType, ColBody}
	case KindContacts:
		return []string{ColName, ColPhoneNumbers, ColEmails}
	default:
		return nil
	}
}

// ParseKind accepts the identifier or a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call_log", "calllog", "calls", "call-log":
		return KindCallLog, nil
	case "sms", "messages":
		return KindSMS, nil
	case "contacts":
		return KindContacts, nil
	default:
		return 0, fmt.Errorf("unknown export kind %q (use calls, sms or contacts)", s)
	}
}
