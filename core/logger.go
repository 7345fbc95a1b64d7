package core

// Logger is any service that can log leveled messages. Implementations may
// treat trailing args specially (e.g. attach an authenticated user to the
// report).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
