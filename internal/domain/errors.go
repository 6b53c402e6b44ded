package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("identity not on allow-list")
	ErrUserNotFound          = errors.New("user not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrConversationConcluded = errors.New("conversation concluded")
	ErrGeneratorUnavailable  = errors.New("generator unavailable")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrBusy                  = errors.New("previous turn still in progress")
)
