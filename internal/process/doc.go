// Package process wraps the platform-specific parts of managing worker
// processes: process-group isolation, tree kill and liveness checks.
package process
