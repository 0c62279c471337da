// Package services defines the business logic for dialogs, participants,
// and messages. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrDialogNotFound indicates that the requested dialog does not exist.
	ErrDialogNotFound = errors.New("dialog not found")

	// ErrDialogExists is returned when the target business object already
	// has a dialog bound to it.
	ErrDialogExists = errors.New("dialog already exists for this object")

	// ErrNotParticipant is returned when the acting user is not a member
	// of the dialog.
	ErrNotParticipant = errors.New("user is not a participant of this dialog")

	// ErrAlreadyParticipant is returned when a user joins a dialog they
	// are already a member of.
	ErrAlreadyParticipant = errors.New("user is already a participant")

	// ErrMessageNotFound indicates that the requested message does not
	// exist in the dialog.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotMessageOwner is returned when a user edits or deletes a
	// message they did not send.
	ErrNotMessageOwner = errors.New("message belongs to another user")

	// ErrSystemMessage is returned when a user tries to edit or delete a
	// system-generated message.
	ErrSystemMessage = errors.New("system messages cannot be modified")

	// ErrEmptyContent is returned when a message is blank after
	// sanitization.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrTooLong is returned when message content exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message content too long")
)
