package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tasksync/internal/client"
	"tasksync/internal/config"
	"tasksync/internal/domain"
	"tasksync/internal/logger"

	"github.com/peterh/liner"
)

const requestTimeout = 10 * time.Second

const help = `commands:
  list                 show tasks
  add <text>           add a task
  done <n|id>          toggle completion
  edit <n|id>          edit the description (empty input cancels)
  del <n|id>           delete a task
  select <n|id>        select a task
  quit                 exit`

type session struct {
	replica *client.Replica
	editor  *client.Editor
	line    *liner.State
	log     *slog.Logger
}

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogJSON)

	api := client.NewModifyClient(cfg.ModifyURL, nil)
	d := client.NewDispatcher(log)
	defer d.Close()
	replica := client.NewReplica(api, d, log)
	replica.Observe(func(ev domain.ChangeEvent) {
		switch ev.Kind {
		case domain.EventDeleted:
			fmt.Printf("\r* %s %s\n", ev.Kind, ev.ID)
		default:
			fmt.Printf("\r* %s %s\n", ev.Kind, formatTask(ev.Task))
		}
	})

	// Connect and subscribe once, before the first prompt.
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	nc, err := client.DialNotify(ctx, cfg.NotifyURL, replica, log)
	if err == nil {
		err = nc.Subscribe(ctx)
	}
	if err == nil {
		err = replica.Sync(ctx)
	}
	cancel()
	if err != nil {
		log.Error("failed to connect", "modify_url", cfg.ModifyURL, "notify_url", cfg.NotifyURL, "error", err)
		fmt.Fprintln(os.Stderr, "could not connect to server")
		os.Exit(1)
	}
	defer nc.Close()

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	s := &session{
		replica: replica,
		editor:  client.NewEditor(replica, api, log),
		line:    line,
		log:     log,
	}
	s.list()
	fmt.Println(`type "help" for commands`)

	for {
		input, err := line.Prompt("tasks> ")
		if err != nil {
			// Ctrl+C, Ctrl+D
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		select {
		case <-nc.Done():
			fmt.Fprintln(os.Stderr, "connection to server lost")
			return
		default:
		}

		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)
		if !s.run(cmd, arg) {
			return
		}
	}
}

func (s *session) run(cmd, arg string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var err error
	switch cmd {
	case "help", "?":
		fmt.Println(help)
	case "list", "ls":
		s.list()
	case "add":
		_, err = s.replica.AddTask(ctx, arg)
	case "done":
		err = s.withTask(arg, func(t domain.Task) error { return s.replica.ToggleComplete(ctx, t.ID) })
	case "del", "rm":
		err = s.withTask(arg, func(t domain.Task) error {
			if !s.editor.CanDelete(t.ID) {
				return client.ErrTaskLocked
			}
			return s.replica.DeleteTask(ctx, t.ID)
		})
	case "edit":
		err = s.withTask(arg, func(t domain.Task) error { return s.edit(t) })
	case "select":
		err = s.withTask(arg, func(t domain.Task) error {
			s.replica.Select(t.ID)
			return nil
		})
	case "quit", "exit", "q":
		return false
	default:
		fmt.Printf("unknown command %q, try help\n", cmd)
	}
	if err != nil {
		s.report(err)
	}
	return true
}

func (s *session) edit(t domain.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.editor.BeginEdit(ctx, t.ID); err != nil {
		return err
	}

	text, err := s.line.PromptWithSuggestion("edit> ", t.Description, -1)
	text = strings.TrimSpace(text)

	ctx, cancel = context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err != nil || text == "" || text == t.Description {
		return s.editor.Cancel(ctx, t.ID)
	}
	if err := s.editor.Draft(t.ID, text); err != nil {
		return err
	}
	return s.editor.Save(ctx, t.ID, text)
}

// withTask resolves ref as a 1-based list position or an id prefix. An
// empty ref means the selected task.
func (s *session) withTask(ref string, fn func(t domain.Task) error) error {
	if ref == "" {
		t, ok := s.replica.Selected()
		if !ok {
			return fmt.Errorf("%w: nothing selected", domain.ErrNotFound)
		}
		return fn(t)
	}

	tasks := s.replica.Tasks()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(tasks) {
		return fn(tasks[n-1])
	}
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, ref) {
			return fn(t)
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
}

func (s *session) list() {
	tasks := s.replica.Tasks()
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	sel, _ := s.replica.Selected()
	for i, t := range tasks {
		marker := " "
		if t.ID == sel.ID {
			marker = ">"
		}
		fmt.Printf("%s %2d. %s\n", marker, i+1, formatTask(t))
	}
}

// report logs the full error, then prints a short summary.
func (s *session) report(err error) {
	s.log.Error("command failed", "error", err)

	var f *domain.Fault
	switch {
	case errors.As(err, &f):
		fmt.Println("error:", f.Message)
	case errors.Is(err, client.ErrTaskLocked):
		fmt.Println("error: task is being edited by someone else")
	default:
		fmt.Println("error:", err)
	}
}

func formatTask(t domain.Task) string {
	box := "[ ]"
	if t.IsCompleted {
		box = "[x]"
	}
	lock := ""
	if t.IsLocked {
		lock = " (locked)"
	}
	return fmt.Sprintf("%s %s%s  %s", box, t.Description, lock, shortID(t.ID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
