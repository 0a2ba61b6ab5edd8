// Package ui provides the terminal user interface for olhovivo.
//
// # Architecture Overview
//
// The interface is a Bubble Tea program. Model owns every widget (tables,
// the search input, the log viewport) and all request state. Requests to
// Olho Vivo run as tea.Cmd functions and report back as messages, so the
// Update loop never blocks on the network.
//
// # Package Structure
//
//   - ui.go: Options and Run
//   - model.go: Model, Update and key handling
//   - messages.go: request commands and their result messages
//   - view.go: rendering of the header, footer and each view
//   - tables.go: column layouts and row builders
//   - theme.go: palettes and derived lipgloss styles
//   - keys.go, help.go: key bindings and the help overlay
//   - errors.go: user-facing text for client errors
//
// # Views
//
//   - Stops (1): search stops, enter opens the stop
//   - Stop: lines serving the stop, enter shows arrival predictions
//   - Lines (2): search lines, enter tracks the line
//   - Vehicles (3): live positions of the tracked line, fed by state.Store
//   - Roads (4): average speed per road segment
//   - Logs (L): tail of the application log
//
// # Event Flow
//
//  1. Run builds the Model and starts the program
//  2. app.StartPoller refreshes the tracked line into state.Store
//  3. A one second tick copies the latest snapshot into the vehicles table
//  4. Searches and selections issue client calls as commands
//  5. Context cancellation ends the program
//
// Every failed request is shown in place of its results, worded by error
// kind (authentication, transport, unexpected shape). Empty results are
// shown as such and never as errors.
package ui
