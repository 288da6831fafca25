package directory

import "errors"

// ErrNotConfigured indicates the CRM backend has no record for the
// requested agent or settings lookup.
var ErrNotConfigured = errors.New("not configured in directory")
