package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrUnknownSetting  = errors.New("unknown setting")

	ErrInvalidBackend  = errors.New("invalid backend")
	ErrDataStoreAccess = errors.New("data store read/write error")

	ErrCaptchaUnavailable = errors.New("captcha service is currently unavailable")
	ErrVerificationFailed = errors.New("captcha verification failed")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
