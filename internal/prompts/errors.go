package prompts

import "errors"

// ErrInvalidStage is returned for an unrecognized stage name.
var ErrInvalidStage = errors.New("stage must be classify or links")
