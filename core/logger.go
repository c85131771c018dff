package core

// Logger is implemented by the logging services (std console, Rollbar).
// args may include an error, a map of extra context and/or the acting
// user; each implementation decides what to do with them.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
