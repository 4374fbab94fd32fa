package resolve

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const defaultCommand = "dig"

// CommandResolver runs an external lookup tool ("dig +short <domain>") and
// keeps the output lines that are IPv4 literals.
type CommandResolver struct {
	command string
}

// NewCommandResolver creates a resolver running command, or dig when empty.
func NewCommandResolver(command string) *CommandResolver {
	if command == "" {
		command = defaultCommand
	}
	return &CommandResolver{command: command}
}

// Resolve runs the command and parses its standard output. The process is
// killed when ctx is done.
func (r *CommandResolver) Resolve(ctx context.Context, domain string) (AddressList, error) {
	if domain == "" || strings.HasPrefix(domain, "-") {
		return AddressList{}, fmt.Errorf("%w: invalid domain name %q", ErrResolveFailed, domain)
	}

	cmd := exec.CommandContext(ctx, r.command, "+short", domain)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return AddressList{}, fmt.Errorf("%w: %w", ErrResolveFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return AddressList{}, fmt.Errorf("%w: failed to start %s: %w", ErrResolveFailed, r.command, err)
	}

	list, readErr := ParseLines(stdout)
	if err := cmd.Wait(); err != nil {
		return list, fmt.Errorf("%w: %s exited: %w", ErrResolveFailed, r.command, err)
	}
	return list, readErr
}
