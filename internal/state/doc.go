// Package state holds the vehicle positions of the line the user is
// tracking, shared between the background poller and the UI.
//
// # Overview
//
// The poller writes with Update, the UI reads with Snapshot. A
// sync.RWMutex guards the data and every Snapshot is a deep copy, so the UI
// may hold on to it while the next poll lands.
//
//	store := &state.Store{}
//	store.Track(line)
//
//	// poller goroutine
//	vehicles, err := client.VehiclePositions(ctx, line.Code)
//	store.Update(line.Code, vehicles, err)
//
//	// UI
//	snap := store.Snapshot()
//
// # Update Semantics
//
// Update carries the line code the poll was issued for. When the user has
// switched lines in the meantime the result is dropped, so a slow response
// for an old line never overwrites the new one.
//
// On error the previous vehicles are kept, LastError is recorded and
// ConsecutiveFailures grows. IsStale reports two or more failures in a row,
// which the UI shows next to the last good data. A successful poll resets
// the counter, even when it returns no vehicles.
//
// Track and Untrack reset everything.
package state
