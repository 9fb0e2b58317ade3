package conversation

import (
	"fmt"
	"math"
)

const (
	msgAskStudentID       = "Welcome! You are not registered yet. Please send your student ID."
	msgStudentIDRequired  = "Your student ID cannot be empty. Please send your student ID."
	msgAskName            = "Thanks. Now please send your full name."
	msgNameRequired       = "Your name cannot be empty. Please send your full name."
	msgAskLocation        = "Please share your current location using the button below."
	msgAlreadyRegistered  = "You were already registered, so this check-in was added to your existing profile."
	msgLocationQuickReply = "Send location"
)

func msgWelcomeBack(name string) string {
	return fmt.Sprintf("Hi %s! Please share your current location to check in.", name)
}

func msgOutOfRange(distanceMeters float64) string {
	return fmt.Sprintf("You are outside the attendance area (about %dm away). Please move closer and share your location again.", roundMeters(distanceMeters))
}

func msgRegistered(name string) string {
	return fmt.Sprintf("Registration complete, %s. Your attendance has been recorded.", name)
}

func msgRecorded(name string) string {
	return fmt.Sprintf("Attendance recorded. Thank you, %s!", name)
}

func msgFailure(trigger string) string {
	return fmt.Sprintf("Sorry, something went wrong on our side. Please send %q to try again.", trigger)
}

func msgHelp(trigger string) string {
	return fmt.Sprintf("Send %q to check in.", trigger)
}

func msgNotRegistered(trigger string) string {
	return fmt.Sprintf("You are not registered yet. Send %q to begin.", trigger)
}

// roundMeters is the only place distances lose precision.
func roundMeters(d float64) int64 {
	return int64(math.Round(d))
}

func text(s string) Reply {
	return Reply{Text: s}
}

func askLocation(s string) Reply {
	return Reply{Text: s, AskLocation: true, QuickReplyLabel: msgLocationQuickReply}
}
