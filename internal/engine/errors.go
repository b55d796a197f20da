package engine

import "errors"

// Sentinel errors for engine operations.
var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrPDFGeneration  = errors.New("PDF generation failed")
	ErrHTMLConversion = errors.New("HTML conversion failed")
	ErrNotInitialized = errors.New("engine not initialized")
)
