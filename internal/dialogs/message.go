package dialogs

import "context"

// Kind selects the alert style.
type Kind int

const (
	Info Kind = iota
	Warning
	Error
	Question
)

// Message is a modal alert.
type Message struct {
	Kind    Kind
	Title   string
	Text    string
	Buttons []string
	Default string
	Cancel  string
}

// Presenter shows a modal alert and returns the label of the pressed button.
// Presenters marshal onto the UI thread themselves.
type Presenter interface {
	Present(ctx context.Context, m Message) (string, error)
}

const title = "SlowQuit"

// Button labels.
const (
	ButtonOK           = "OK"
	ButtonCancel       = "Cancel"
	ButtonOpenSettings = "Open System Settings"
	ButtonGranted      = "I've Granted Access"
	ButtonStartAtLogin = "Start at Login"
	ButtonNotNow       = "Not Now"
)

const (
	autoStartText = "Would you like SlowQuit to start automatically when you log in?"

	hotkeyFailureText = "SlowQuit could not register its global hotkey.\n\n" +
		"Another application may already be using the same shortcut. " +
		"Try quitting other hotkey utilities and restarting SlowQuit."

	requirementText = "SlowQuit needs Accessibility access to register its global hotkey.\n\n" +
		"Open System Settings > Privacy & Security > Accessibility and enable SlowQuit. " +
		"The hotkey stays disabled until access is granted."

	permissionsDialogText = "SlowQuit needs Accessibility access to register its global hotkey.\n\n" +
		"1. Click \"" + ButtonOpenSettings + "\"\n" +
		"2. Enable SlowQuit in the Accessibility list\n" +
		"3. Come back and click \"" + ButtonGranted + "\""

	afterOpenText = "Enable SlowQuit in the Accessibility list, then click \"" + ButtonGranted + "\"."

	notDetectedText = "Accessibility access is still not enabled for SlowQuit.\n\n" +
		"Make sure the switch next to SlowQuit is turned on. If SlowQuit is already listed, " +
		"remove it with the minus button and add it again."
)
