// Package logtail reads the tail of the olhovivo log file and renders its
// slog JSON lines for the diagnostics view.
//
// # Reading
//
// Read keeps a ring buffer of maxLines entries while scanning the file once,
// so memory stays proportional to maxLines rather than file size. A
// maxLines of zero or less returns the whole file. A missing file yields no
// lines and no error.
//
//	lines, err := logtail.Read(cfg.LogFile, 400)
//	if err != nil {
//		log.Printf("failed to read log: %v", err)
//	}
//
// # Rendering
//
// Summarize turns a JSON line such as
//
//	{"time":"2025-10-08T21:01:05Z","level":"INFO","msg":"http_request","op":"search_stops","status":200}
//
// into
//
//	21:01:05 INFO  http_request op=search_stops status=200
//
// Attributes keep their order from the file. Values containing spaces are
// quoted. Lines that are not JSON objects are returned unchanged.
package logtail
