package tui

// Message types for the TUI

// drainMsg asks Update to run closures dispatched to the model's queue
type drainMsg struct{}

// startMsg starts the view model once the program loop is running
type startMsg struct{}
