package realtime

import "errors"

var errFirstFrame = errors.New("first frame must be an auth frame")
