// Package logger wraps zap for the installer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level switching for the --verbose flag.
//
// Pipeline steps take a context and pull the logger from it, so a run id
// or step name attached once shows up on every line below it.
package logger
