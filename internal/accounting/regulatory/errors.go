package regulatory

import "errors"

// ErrUnknownReport indicates a report name with no builder.
var ErrUnknownReport = errors.New("regulatory: unknown report")
