// Package config resolves the installer settings.
//
// Values are layered once at startup: compiled-in defaults, then an optional
// YAML settings file, then environment variables (a local .env file is read
// first), then explicit command line flags. The result is validated and not
// changed afterwards.
package config
