package ui

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// For a list of possible icons, see: https://specifications.freedesktop.org/icon-naming-spec/icon-naming-spec-latest.html
const (
	IconDialogError = "dialog-error"
	IconDialogInfo  = "dialog-information"
	IconDialogWarn  = "dialog-warning"

	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyCritical = "critical"

	appName = "nctfan"
)

var errNoDisplayUser = errors.New("unable to detect user of current display session")

func NotifyInfo(title, text string) {
	NotifySend(UrgencyLow, title, text, IconDialogInfo)
}

func NotifyWarn(title, text string) {
	NotifySend(UrgencyNormal, title, text, IconDialogWarn)
}

func NotifyError(title, text string) {
	NotifySend(UrgencyCritical, title, text, IconDialogError)
}

// NotifySend shows a desktop notification in the session of the user owning $DISPLAY.
// The daemon runs as root, so notify-send is started as that user on its session bus.
func NotifySend(urgency, title, text, icon string) {
	display, exists := os.LookupEnv("DISPLAY")
	if !exists {
		Debug("Cannot send notification, missing env variable 'DISPLAY'")
		return
	}

	user, uid, err := displayUser(display)
	if err != nil {
		Warning("Cannot send notification: %v", err)
		return
	}

	cmd := exec.Command("sudo", "-u", user,
		"DISPLAY="+display,
		fmt.Sprintf("DBUS_SESSION_BUS_ADDRESS=unix:path=/run/user/%s/bus", uid),
		"notify-send",
		"-a", appName,
		"-u", urgency,
		"-i", icon,
		title, text,
	)
	if err = cmd.Run(); err != nil {
		Error("Error sending notification: %v", err)
	}
}

func displayUser(display string) (user string, uid string, err error) {
	output, err := exec.Command("who").Output()
	if err != nil {
		return "", "", fmt.Errorf("listing sessions: %w", err)
	}
	user = findSessionUser(string(output), display)
	if len(user) <= 0 {
		return "", "", errNoDisplayUser
	}

	output, err = exec.Command("id", "-u", user).Output()
	if err != nil {
		return "", "", fmt.Errorf("detecting user id of %s: %w", user, err)
	}
	uid = strings.TrimSpace(string(output))
	if len(uid) <= 0 {
		return "", "", fmt.Errorf("empty user id for %s", user)
	}
	return user, uid, nil
}

// findSessionUser returns the user of the first `who` line that mentions display
func findSessionUser(whoOutput string, display string) string {
	for _, line := range strings.Split(whoOutput, "\n") {
		if !strings.Contains(line, display) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
