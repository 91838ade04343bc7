// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - an optional rotating JSON file sink backed by lumberjack,
//   - level parsing and convenience functions (InfoKV, ErrorKV, etc.).
//
// Services accept a context and extract the logger from it, so request ids and
// alert ids attached upstream show up on every line logged downstream.
package logger
