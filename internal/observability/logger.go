package observability

import "github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("metrics")
