package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mailsched/internal/app"
	"mailsched/internal/task"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError is reported with the flag usage and exit code 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type command struct {
	cfgPath string
	envFile string

	add         int
	unit        string
	emailList   string
	messageFile string
	subject     string
	attachments stringList

	list   bool
	remove string
}

func parseFlags(args []string, stderr io.Writer) (*command, *flag.FlagSet, error) {
	c := &command{}
	fs := flag.NewFlagSet("mailsched", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.cfgPath, "config", "", "path to config (json or yaml); defaults apply when omitted")
	fs.StringVar(&c.envFile, "env", ".env", "path to .env file with SENDER_EMAIL and SENDER_PASSWORD")
	fs.IntVar(&c.add, "add", 0, "add a task firing every N units")
	fs.StringVar(&c.unit, "unit", "", "interval unit: "+strings.Join(unitNames(), ", "))
	fs.StringVar(&c.emailList, "email-list", "", "recipient list (.csv or .xlsx)")
	fs.StringVar(&c.messageFile, "message-file", "", "message template; {name} is replaced per recipient")
	fs.StringVar(&c.subject, "subject", "", "email subject")
	fs.Var(&c.attachments, "attachment", "file to attach (repeatable)")
	fs.BoolVar(&c.list, "list", false, "list scheduled tasks")
	fs.StringVar(&c.remove, "remove", "", "remove the named task")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() > 0 {
		return nil, fs, usageError{fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " "))}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	n := 0
	for _, k := range []string{"add", "list", "remove"} {
		if set[k] {
			n++
		}
	}
	if n > 1 {
		return nil, fs, usageError{"-add, -list and -remove are mutually exclusive"}
	}
	if set["add"] {
		var missing []string
		for _, k := range []string{"unit", "email-list", "message-file", "subject"} {
			if !set[k] {
				missing = append(missing, "-"+k)
			}
		}
		if len(missing) > 0 {
			return nil, fs, usageError{"-add requires " + strings.Join(missing, ", ")}
		}
		if c.add <= 0 {
			return nil, fs, usageError{"-add must be a positive integer"}
		}
		if _, err := task.ParseUnit(c.unit); err != nil {
			return nil, fs, usageError{err.Error()}
		}
	}
	if set["remove"] && strings.TrimSpace(c.remove) == "" {
		return nil, fs, usageError{"-remove requires a task name"}
	}
	return c, fs, nil
}

func unitNames() []string {
	units := task.Units()
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, string(u))
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c, fs, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "error:", ue.msg)
		fs.Usage()
		return exitUsage
	}
	if err != nil {
		// flag already printed the problem and usage.
		return exitUsage
	}

	serve := !c.list && c.remove == "" && c.add == 0
	opts := app.Options{ConfigPath: c.cfgPath, EnvFiles: []string{c.envFile}, Serve: serve, LogOut: stderr}
	if serve {
		opts.LogOut = stdout
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		fmt.Fprintln(stderr, "fatal:", err)
		return exitError
	}
	defer a.Close()

	if _, err := a.Reconcile(ctx); err != nil {
		fmt.Fprintln(stderr, "fatal: load tasks:", err)
		return exitError
	}

	switch {
	case c.add > 0:
		return cmdAdd(ctx, a, c, stdout, stderr)
	case c.list:
		return cmdList(ctx, a, stdout, stderr)
	case c.remove != "":
		return cmdRemove(ctx, a, strings.TrimSpace(c.remove), stdout, stderr)
	default:
		if err := a.Serve(ctx); err != nil {
			fmt.Fprintln(stderr, "fatal:", err)
			return exitError
		}
		return exitOK
	}
}

func cmdAdd(ctx context.Context, a *app.App, c *command, stdout, stderr io.Writer) int {
	unit, _ := task.ParseUnit(c.unit)
	name, err := a.Add(ctx, task.Definition{
		Interval:    c.add,
		Unit:        unit,
		EmailList:   c.emailList,
		MessageFile: c.messageFile,
		Subject:     c.subject,
		Attachments: c.attachments,
	})
	switch {
	case err == nil:
		fmt.Fprintf(stdout, "Task '%s' added successfully.\n", name)
		return exitOK
	case errors.Is(err, task.ErrDuplicate):
		fmt.Fprintln(stdout, "Task with the same interval and details already exists.")
		return exitOK
	case errors.Is(err, task.ErrInvalidDefinition), errors.Is(err, task.ErrInvalidInterval), errors.Is(err, task.ErrInvalidUnit):
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
}

func cmdList(ctx context.Context, a *app.App, stdout, stderr io.Writer) int {
	tasks, err := a.List(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
	if len(tasks) == 0 {
		fmt.Fprintln(stdout, "No tasks scheduled.")
		return exitOK
	}
	fmt.Fprintln(stdout, "Scheduled tasks:")
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, t := range tasks {
		fmt.Fprintf(tw, "  %s\tevery %d %s\t%s\n", t.Name, t.Interval, t.Unit, t.Subject)
	}
	_ = tw.Flush()
	return exitOK
}

func cmdRemove(ctx context.Context, a *app.App, name string, stdout, stderr io.Writer) int {
	wasRunning, err := a.Remove(ctx, name)
	switch {
	case errors.Is(err, task.ErrNotFound):
		fmt.Fprintf(stdout, "Task '%s' not found.\n", name)
		return exitOK
	case err != nil:
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	case !wasRunning:
		fmt.Fprintf(stdout, "Task '%s' removed (it was not running).\n", name)
	default:
		fmt.Fprintf(stdout, "Task '%s' removed successfully.\n", name)
	}
	return exitOK
}
