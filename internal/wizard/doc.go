// Package wizard drives the portal's past-papers wizard to its results state.
//
// The Navigator walks the steps of a qualification profile, resolving each
// step's locator with bounded polling, clicking it with the Clicker's
// fallback chain and waiting for the step's readiness condition. Every wait
// is a poll with a bound; nothing sleeps for a fixed time.
package wizard
