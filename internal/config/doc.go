// Package config loads olhovivo settings from TOML, a dotenv file and the
// process environment.
//
// # Resolution Order
//
// Later sources override earlier ones, field by field:
//
//  1. Built-in defaults
//  2. The TOML file (~/.config/olhovivo/config.toml unless a path is given)
//  3. The dotenv file, when one is given
//  4. The process environment (OLHOVIVO_TOKEN, OLHOVIVO_BASE_URL,
//     OLHOVIVO_LOG_LEVEL)
//
// A missing TOML or dotenv file is not an error. The dotenv file is parsed
// with godotenv.Read and never exported into the process environment.
//
// # TOML Format
//
//	base_url = "http://api.olhovivo.sptrans.com.br/v2.1"
//	token = "your-developer-token"
//	timeout_seconds = 10
//	poll_seconds = 15
//	requests_per_second = 0
//	reauthenticate = false
//	log_file = "~/.local/state/olhovivo/olhovivo.log"
//	log_level = "info"
//
// Every field is optional. Tilde expansion is applied to log_file.
//
// # Validation
//
// Load only fails on unreadable or malformed files. Call Validate to reject
// settings that cannot work (non-http base URL, negative durations, unknown
// log level). A missing token is not a validation error: HasToken reports
// it so the UI can warn, and the client simply fails to authenticate.
package config
