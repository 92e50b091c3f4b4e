package metrics

import (
	"time"
)

// HTTPMetrics provides observability for the REST API.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type HTTPMetrics interface {
	// RecordRequest records a completed HTTP request.
	//
	// Parameters:
	//   - method: HTTP method (e.g., "GET", "POST")
	//   - route: Route pattern (e.g., "/api/feeds/{feedID}/messages")
	//   - status: HTTP status code
	//   - duration: Time taken to process the request
	RecordRequest(method string, route string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request counter.
	RecordRequestStart(method string, route string)

	// RecordRequestEnd decrements the in-flight request counter.
	RecordRequestEnd(method string, route string)

	// RecordRateLimited records a request rejected by the rate limiter.
	//
	// Parameters:
	//   - category: Rate limit category (e.g., "messages", "auth")
	RecordRateLimited(category string)
}
