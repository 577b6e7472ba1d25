// Package ratelimit throttles outbound requests to the tracker.
//
// TokenBucket refills continuously: a bucket of capacity N refilled at
// N per minute lets a short burst through and then settles at one request
// every 60/N seconds.
package ratelimit
