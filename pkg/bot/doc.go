// Package bot implements the inbound turn pipeline: middleware, middleware
// sets and the channel independent Adapter base that routes errors through a
// single turn error handler.
package bot
