package notifier

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/TheCreeper/go-notify"
	"go.uber.org/zap"
)

const (
	notifyAppName = "Gmail Notifier"
	notifyIcon    = "mail-unread"

	// notifyExpireMillis is how long a notification stays on screen.
	notifyExpireMillis = 10000
	// notifySendTimeout kills a hung notify-send process.  The command only
	// returns after the notification expires or the user clicks an action.
	notifySendTimeout = 15 * time.Second
)

// desktopNotifier displays notifications on the user's desktop.  When
// notify-send is installed it is preferred, because its -A flags give the
// notification clickable Open and Snooze buttons and report the pressed one
// on stdout.  Otherwise notifications go straight over D-Bus.  Either way
// delivery is fire-and-forget and runs off the caller's goroutine.
type desktopNotifier struct {
	logger         *zap.SugaredLogger
	gmailURL       string
	notifySendPath string

	onOpen   func(link string)
	onSnooze func()
}

func newDesktopNotifier(logger *zap.SugaredLogger, gmailURL string, onOpen func(string), onSnooze func()) *desktopNotifier {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		path = ""
	}
	return &desktopNotifier{
		logger:         logger,
		gmailURL:       gmailURL,
		notifySendPath: path,
		onOpen:         onOpen,
		onSnooze:       onSnooze,
	}
}

func (n *desktopNotifier) Notify(req NotificationRequest) {
	go n.deliver(req)
}

func (n *desktopNotifier) deliver(req NotificationRequest) {
	if n.notifySendPath != "" {
		n.deliverWithActions(req)
		return
	}
	n.deliverOverDBus(req)
}

// deliverWithActions runs notify-send, waits for it to report which action
// button (if any) the user pressed, and reacts.  Failures are swallowed; a
// lost notification is not worth an error path.
func (n *desktopNotifier) deliverWithActions(req NotificationRequest) {
	openLabel := "open=Open Gmail"
	if req.Link != "" {
		openLabel = "open=Open Email"
	}

	args := []string{
		"-a", notifyAppName,
		"-i", notifyIcon,
		"-e",
		"-t", strconv.Itoa(notifyExpireMillis),
		"-A", openLabel,
	}
	if req.CanSnooze {
		args = append(args, "-A", "snooze=Snooze 1 hour")
	}
	args = append(args, req.Title, req.Body)

	ctx, cancel := context.WithTimeout(context.Background(), notifySendTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, n.notifySendPath, args...).Output()
	if err != nil {
		n.logger.Debugw("notify-send failed",
			"notification", req.ID,
			"error", err)
		return
	}

	switch strings.TrimSpace(string(out)) {
	case "open":
		link := req.Link
		if link == "" {
			link = n.gmailURL
		}
		n.onOpen(link)
	case "snooze":
		if req.CanSnooze {
			n.onSnooze()
		}
	}
}

func (n *desktopNotifier) deliverOverDBus(req NotificationRequest) {
	ntf := notify.NewNotification(req.Title, req.Body)
	ntf.AppName = notifyAppName
	ntf.AppIcon = notifyIcon
	ntf.Timeout = notifyExpireMillis
	if _, err := ntf.Show(); err != nil {
		n.logger.Debugw("dbus notification failed",
			"notification", req.ID,
			"error", err)
	}
}

// openInBrowser opens the link with the desktop's URL handler.
func openInBrowser(logger *zap.SugaredLogger, link string) {
	cmd := exec.Command("xdg-open", link)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Errorw("failed to open link",
			"link", link,
			"error", err,
			"output", string(output))
		return
	}

	logger.Infow("opened link",
		"link", link)
}
