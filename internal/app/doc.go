// Package app is the composition root of olhovivo.
//
// # Overview
//
// Run loads configuration, opens the log file, builds the Olho Vivo client
// and then takes one of two paths:
//
//   - Query mode (Options.Args set): run a single command, print a table
//     and return.
//   - Interactive mode: start the vehicle poller and hand control to the
//     terminal UI until the user quits or the context is cancelled.
//
// # Data Flow
//
//	Run()
//	 ├─> config.Load()        TOML + .env + environment
//	 ├─> logging.Open()       JSON log file
//	 ├─> sptrans.NewClient()  session, rate limit, gzip transport
//	 ├─> Query()              one-shot mode
//	 └─> StartPoller()        interactive mode
//	     └─> ui.Run()         blocks
//
// # Polling
//
// The poller refreshes the vehicle positions of the line tracked in the
// state.Store at a fixed interval (poll_seconds, default 15). Nothing is
// fetched while no line is tracked. Failures are logged and recorded in the
// store; there is no backoff and no retry, the next tick simply tries again.
//
// # Query Commands
//
//	olhovivo stops <term>
//	olhovivo lines <term>
//	olhovivo stop-lines <stop-code>
//	olhovivo vehicles <line-code>
//	olhovivo predictions <stop-code> <line-code>
//	olhovivo roads
//
// Results print as a lipgloss table. A failed call is returned as an error
// whose message names the failure kind (authentication, service error,
// unexpected response).
package app
