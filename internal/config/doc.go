// Package config loads the ipcrunner harness configuration.
//
// The configuration describes the environment of the application under test
// rather than the tests themselves: where its binaries live, how it is built,
// which files it reads and writes, which message queues it creates, and the
// delays used while driving it. Test scenarios live in their own files and are
// handled by the scenario package.
//
// # Configuration File
//
// The file is optional. When no path is given, ipcrunner.yaml in the current
// directory is used if it exists; otherwise the built-in defaults apply.
// Values present in the file override the defaults field by field:
//
//	workdir: ./assignment
//	server: { path: ./build/server }
//	timing:
//	  server_warmup: 500ms
//	  client_stagger: 100ms
//
// Durations use Go syntax ("200ms", "1s", "5m").
//
// # Errors
//
// Problems are returned as *ConfigurationError, which carries the file name,
// an error category (io, parse, validation) and, where possible, suggestions.
// Validation collects every problem into ValidationErrors instead of stopping
// at the first one.
package config
