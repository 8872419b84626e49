package git

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Launcher selects the program git runs as its editor during a commit.
type Launcher string

const (
	// LauncherShell is a POSIX shell one-liner that polls for the sentinel.
	LauncherShell Launcher = "shell"

	// LauncherBuiltin runs "gitbuf editor-wait", which waits with fsnotify.
	LauncherBuiltin Launcher = "builtin"
)

// ParseLauncher parses a launcher name.
func ParseLauncher(s string) (Launcher, error) {
	switch Launcher(strings.ToLower(strings.TrimSpace(s))) {
	case LauncherShell, "":
		return LauncherShell, nil
	case LauncherBuiltin:
		return LauncherBuiltin, nil
	default:
		return "", fmt.Errorf("unknown editor launcher %q", s)
	}
}

// EditorWaitCommand is the subcommand behind LauncherBuiltin.
const EditorWaitCommand = "editor-wait"

// ShellLauncher returns a GIT_EDITOR value that prints the file git hands it,
// then polls every poll for sentinel and exits 0 once it exists.
//
// git runs the editor as `sh -c '<GIT_EDITOR> "$@"' <file>`, so the value
// defines a function and leaves the call open for git's arguments.
func ShellLauncher(sentinel string, poll time.Duration) string {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	secs := strconv.FormatFloat(poll.Seconds(), 'f', -1, 64)

	return fmt.Sprintf(
		`gitbuf_editor() { printf '%%s\n' "$1"; while [ ! -e %s ]; do sleep %s; done; }; gitbuf_editor`,
		shellQuote(sentinel), secs)
}

// BuiltinLauncher returns a GIT_EDITOR value that runs exe's editor-wait
// subcommand for sentinel. git appends the message file.
func BuiltinLauncher(exe, sentinel string) string {
	return strings.Join([]string{shellQuote(exe), EditorWaitCommand, shellQuote(sentinel)}, " ")
}

// shellQuote quotes s as a single POSIX shell word.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
