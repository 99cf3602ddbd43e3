package domain

import "strings"

// classification markers, checked in order: the first family whose marker
// appears in the error text wins. Access-denied style failures sit before the
// generic buckets because blocked providers matter more than flaky ones.
var classifiers = []struct {
	errType ErrorType
	markers []string
}{
	{ErrCaptcha, []string{"captcha"}},
	{ErrRateLimited, []string{"429", "rate limit", "too many requests"}},
	{ErrForbidden, []string{"403", "forbidden", "blocked"}},
	{ErrAccessDenied, []string{"access denied", "401", "unauthorized"}},
	{ErrTimeout, []string{"timeout", "deadline exceeded", "timed out"}},
	{ErrNavigation, []string{"navigate", "navigation", "net::", "no such host", "connection refused"}},
	{ErrSelector, []string{"selector", "no such element", "matched no elements", "not found in document"}},
}

// Classify matches an error message against the fixed vocabulary of probable
// causes. Unmatched errors are ErrUnknown.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}
	message := strings.ToLower(err.Error())
	for _, c := range classifiers {
		for _, marker := range c.markers {
			if strings.Contains(message, marker) {
				return c.errType
			}
		}
	}
	return ErrUnknown
}
