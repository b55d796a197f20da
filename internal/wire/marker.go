package wire

// EndMarkerPrefix starts the stderr line a worker writes after answering a
// request. The caller uses it to cut stderr at the exact request boundary.
const EndMarkerPrefix = "\x1edocworker:end "

// EndMarker returns the full marker line for request id, newline included.
func EndMarker(id string) string {
	return EndMarkerPrefix + id + "\n"
}
