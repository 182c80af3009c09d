package pipeline

import "errors"

var (
	ErrMissingSlot    = errors.New("required slot missing from state")
	ErrNoFetcher      = errors.New("no fetcher configured")
	ErrNoClassifier   = errors.New("no classifier configured")
	ErrNotResolved    = errors.New("query did not resolve to a url")
	ErrNoText         = errors.New("no text could be extracted")
	ErrNoTranscript   = errors.New("video has no transcript")
	ErrInvalidRequest = errors.New("invalid run request")
)
