package protocol

import "fmt"

// Push builds the button press/release message sent to the controller.
func Push(port, channel int, on bool) string {
	v := 0
	if on {
		v = 1
	}
	return fmt.Sprintf("PUSH:%d:%d:%d;", port, channel, v)
}

// KeyboardText builds the message for text entered on the keyboard popup.
func KeyboardText(panelID int, text string) string {
	return fmt.Sprintf("KEY:%d:1:1:KEYB-%s", panelID, text)
}

// KeypadText builds the message for text entered on the numeric keypad.
func KeypadText(panelID int, text string) string {
	return fmt.Sprintf("KEY:%d:1:1:KEYP-%s", panelID, text)
}

// Ready is the registration line a panel sends after connecting.
func Ready(panelID int) string {
	return fmt.Sprintf("READY;%d", panelID)
}
