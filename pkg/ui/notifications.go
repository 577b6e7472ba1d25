package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification.
type NotificationSender interface {
	Send(title, message string) error
}

type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$text = $template.GetElementsByTagName("text")
		$text.Item(0).AppendChild($template.CreateTextNode(%q)) | Out-Null
		$text.Item(1).AppendChild($template.CreateTextNode(%q)) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("yggharvest").Show($toast)
	`, title, message)
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier announces the end of long harvests on the desktop.
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform. Unsupported
// platforms get a Notifier that does nothing.
func NewNotifier() *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return &Notifier{sender: sender}
}

// NewNotifierWithSender is used by tests.
func NewNotifierWithSender(s NotificationSender) *Notifier {
	return &Notifier{sender: s}
}

// Notify sends a notification and returns the sender's error, which
// callers usually ignore.
func (n *Notifier) Notify(title, message string) error {
	if n.sender == nil {
		return nil
	}
	return n.sender.Send(title, message)
}
