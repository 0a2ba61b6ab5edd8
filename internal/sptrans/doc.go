// Package sptrans provides an HTTP client for the SPTrans Olho Vivo API.
//
// # Overview
//
// Olho Vivo publishes real-time data for the São Paulo bus network: lines,
// stops, live vehicle positions, arrival estimates and road speeds. Access
// is gated by a static developer token that is exchanged for a session
// cookie at /Login/Autenticar. Every data endpoint requires that cookie
// except /KMZ.
//
// # Client Usage
//
//	client, err := sptrans.NewClient(sptrans.DefaultBaseURL, token,
//		sptrans.WithLogger(logger),
//		sptrans.WithRateLimit(2),
//	)
//	if err != nil {
//		log.Fatalf("failed to create client: %v", err)
//	}
//
//	stops, err := client.SearchStops(ctx, "Paulista")
//	if err != nil {
//		log.Printf("stop search failed (%s): %v", sptrans.KindOf(err), err)
//	}
//
// # Sessions
//
// Data operations log in lazily. Once a login succeeds the client keeps the
// session and never calls /Login/Autenticar again, unless a data endpoint
// answers 401 or 403 and re-authentication is enabled (the default); then
// the next call logs in again. A failed login is not remembered, so the next
// call retries it. There is no retry within a single call.
//
// Login succeeds when the endpoint answers 2xx with a body that is neither
// empty nor null.
//
// # Results and Errors
//
// Data operations never panic and always return a non-nil slice. On any
// failure the slice is empty and the error says why:
//
//   - ErrAuthFailed: login failed, no data request was sent
//   - *TransportError: network failure or non-2xx status
//   - *ShapeError: the body was not the documented JSON shape
//
// KindOf maps an error to one of these categories for display. Every
// failure is also logged with the operation name, request ID and, for
// shape errors, the offending payload.
//
// # Response Shapes
//
// All data endpoints return a bare JSON array except /Posicao/Linha, which
// wraps the vehicles in an object under "vs". A missing or null "vs" is an
// empty result. Vehicle prefixes arrive as numbers or strings and are kept
// as text. Arrival estimates are free text and are passed through as-is.
//
// # Thread Safety
//
// A Client is safe for concurrent use. Concurrent first calls may each log
// in; all of them end up with a valid session.
package sptrans
