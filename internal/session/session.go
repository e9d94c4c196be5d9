// Package session implements spec §4's interactive mode: a cooperative
// read-line → parse → dispatch → flush loop driving the same descriptor
// tree and query engine used by a single-shot CLI invocation.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tr64go/tr64c/internal/descriptor"
	"github.com/tr64go/tr64c/internal/soap"
)

// Session holds the state shared across interactive commands: the
// descriptor tree built once at startup, the output format, and the
// streams the loop reads from and writes to. Avoids a process-wide
// argument-parser global by threading a single value through Dispatch.
type Session struct {
	Object *descriptor.Object
	Invoke func(ctx context.Context, svc *descriptor.Service, action *descriptor.Action, bindings soap.Bindings) ([]*descriptor.Argument, error)
	Format soap.Format
	Out    io.Writer
}

var commands = []string{"help", "?", "exit", "list", "query"}

// resolveCommand prefix-matches name (case-insensitively) against the
// fixed command set, failing if the prefix is empty, matches nothing, or
// matches more than one command.
func resolveCommand(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("session: empty command")
	}
	lower := strings.ToLower(name)
	var matches []string
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("session: unknown command %q", name)
	case 1:
		return matches[0], nil
	default:
		// An exact match always wins a prefix collision, e.g. "?" against
		// nothing else, or a literal "exit" against no other e-command.
		for _, m := range matches {
			if m == lower {
				return m, nil
			}
		}
		return "", fmt.Errorf("session: ambiguous command %q matches %s", name, strings.Join(matches, ", "))
	}
}

// Run drives the read-line → parse → dispatch → flush loop against r
// until EOF, an "exit" command, or ctx is canceled.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(s.Out, "tr64c> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields, err := SplitLine(line)
		if err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
			continue
		}
		if len(fields) == 0 {
			continue
		}

		cmd, err := resolveCommand(fields[0])
		if err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
			continue
		}

		if cmd == "exit" {
			return nil
		}
		s.dispatch(ctx, cmd, fields[1:])
	}
}

func (s *Session) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "list":
		s.printList()
	case "query":
		s.runQuery(ctx, args)
	}
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.Out, "commands: help|? exit list query <path> [var=value ...]")
}

func (s *Session) printList() {
	for _, dev := range s.Object.Devices {
		for _, svc := range dev.Services {
			for _, act := range svc.Actions {
				fmt.Fprintf(s.Out, "%s/%s/%s\n", dev.Name, svc.Name, act.Name)
			}
		}
	}
}

// runQuery implements the "query <path> [var=value ...]" command: path is
// split as "[<device>/]<service>/<action>" and resolved by prefix match
// against the descriptor tree, exactly as the single-shot CLI path does.
func (s *Session) runQuery(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.Out, "error: query requires a path")
		return
	}
	devicePrefix, servicePrefix, actionPrefix, err := soap.SplitPath(args[0])
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}

	svc, action, err := soap.Select(s.Object, devicePrefix, servicePrefix, actionPrefix)
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}

	bindings, err := soap.ParseBindings(args[1:])
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}

	if _, err := s.Invoke(ctx, svc, action, bindings); err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}

	rendered, err := soap.Render(action, s.Format)
	if err != nil {
		fmt.Fprintf(s.Out, "error: %v\n", err)
		return
	}
	s.Out.Write(rendered)
	fmt.Fprintln(s.Out)
}
