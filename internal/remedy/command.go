package remedy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fyrsmithlabs/remedyd/internal/cifail"
)

// maxCommandNote bounds how much command output is carried into the
// recorded attempt note.
const maxCommandNote = 512

// CommandRemediator runs a fixed shell command as the repair action for
// a pattern. Exit status zero is success; anything else, including a
// timeout killing the process, is a failed outcome with the tail of the
// combined output as the note.
//
// This is the remediator shipped with the CLI: operators bind patterns
// to commands ("reinstall dependencies", "clear the build cache") in the
// config file without writing Go.
type CommandRemediator struct {
	command string
	dir     string
}

// NewCommandRemediator creates a remediator that runs command via the
// shell, in dir when non-empty.
func NewCommandRemediator(command, dir string) *CommandRemediator {
	return &CommandRemediator{command: command, dir: dir}
}

// Fix implements Remediator.
func (c *CommandRemediator) Fix(ctx context.Context, record cifail.Record) (Outcome, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", c.command)
	cmd.Dir = c.dir

	out, err := cmd.CombinedOutput()
	note := truncateNote(string(out))
	if err != nil {
		if note == "" {
			note = err.Error()
		} else {
			note = fmt.Sprintf("%s: %s", err, note)
		}
		return Outcome{Success: false, Note: note}, nil
	}
	if note == "" {
		note = fmt.Sprintf("ran %q", c.command)
	}
	return Outcome{Success: true, Note: note}, nil
}

func truncateNote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxCommandNote {
		s = s[:maxCommandNote] + "..."
	}
	return s
}
