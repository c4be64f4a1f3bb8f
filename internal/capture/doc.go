// Package capture owns voice recording sessions.
//
// A Session is created per recording attempt and destroyed by its Manager. The
// browser acquires the microphone and uploads audio chunks; the session tracks
// the lifecycle (idle, recording, processing, done), enforces the maximum and
// minimum recording length, and hands the finished recording to a completion
// callback exactly once. Cancelling a session stops every track and never
// invokes the callback.
//
// Media acquisition failures reported by the browser are classified into
// MediaError values carrying a message suitable for staff on the floor.
package capture
