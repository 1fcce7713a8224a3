package views

import "time"

// FormValues are the fields the dashboard form is pre-filled with.
type FormValues struct {
	Owner    string
	Repo     string
	Branch   string
	Author   string
	Category string
}

// Message is a one-line status shown above the form.
type Message struct {
	Text  string
	Error bool
}

// HistoryItem is one row of the publish history table.
type HistoryItem struct {
	ID         string
	Repository string // owner/repo@branch
	PostPath   string
	Status     string
	FailedStep string
	Error      string
	Files      int
	StartedAt  time.Time
}

// Dashboard is everything the admin page renders.
type Dashboard struct {
	CSRF     string
	HasToken bool
	Form     FormValues
	Message  Message
	History  []HistoryItem
}
