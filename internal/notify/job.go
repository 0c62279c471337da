// Package notify implements the missed-message notification pipeline and
// the inactivity auto-archive sweep.
//
// Every persisted user message enqueues one job per recipient. A job waits
// a short debounce window, then re-checks the recipient's state: only if
// they still have unread messages, have notifications enabled, and are
// still a member does a notification.pending webhook go out. A newer
// message for the same (dialog, recipient) pair supersedes the older job
// through a cache token, so a burst of messages produces one notification.
package notify

import (
	"github.com/google/uuid"
)

const debouncePrefix = "debounce:notifications:"

// Job identifies one pending notification evaluation.
type Job struct {
	DialogID    string
	RecipientID string
	MessageID   string
	SenderID    string
	// ID is the debounce token: the cache holds the newest job's ID for
	// the (dialog, recipient) pair, and older jobs see a mismatch and
	// bow out.
	ID string
}

// NewJob builds a job with a fresh debounce token.
func NewJob(dialogID, recipientID, messageID, senderID string) Job {
	return Job{
		DialogID:    dialogID,
		RecipientID: recipientID,
		MessageID:   messageID,
		SenderID:    senderID,
		ID:          uuid.NewString(),
	}
}

// debounceKey is the cache key for the newest job token of a pair.
func (j Job) debounceKey() string {
	return debouncePrefix + j.DialogID + ":" + j.RecipientID
}
