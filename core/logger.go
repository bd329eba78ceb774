package core

import "context"

// Logger is any structured logging service.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the staff member an error happened for, and their organization.
type Person struct {
	ID    string
	Name  string
	Email string
	OrgID string
	Role  string
}

// Messenger is any service that can deliver a text message to a channel target
// (telegram chat id, email address...).
type Messenger interface {
	Send(ctx context.Context, target, text string) error
}
