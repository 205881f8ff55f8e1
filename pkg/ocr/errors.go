package ocr

import "errors"

// ErrNoText is returned by an engine whose backend answered with an empty body.
var ErrNoText = errors.New("no text recognized")

// ErrNoEngine is returned when an Adapter is built without a Recognizer.
var ErrNoEngine = errors.New("no recognition engine configured")
