package services

import "errors"

// Explorer service errors
var (
	ErrDatasetNotLoaded = errors.New("no dataset is loaded")
	ErrNoOutput         = errors.New("no pivot output is available")
	ErrUnknownTarget    = errors.New("unknown export target")
)
