package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tasksync/internal/client"
	"tasksync/internal/domain"
	"tasksync/internal/logger"

	"github.com/google/uuid"
)

// printer reports every push it gets on one channel.
type printer struct {
	name string
	got  chan domain.ChangeEvent
}

func (p *printer) OnTaskAdded(t domain.Task) error   { p.got <- domain.Added(t); return nil }
func (p *printer) OnTaskUpdated(t domain.Task) error { p.got <- domain.Updated(t); return nil }
func (p *printer) OnTaskDeleted(id string) error     { p.got <- domain.Deleted(id); return nil }

// Connects two subscribers to a running server, adds and deletes a task and
// checks that both see Added then Deleted.
func main() {
	modifyURL := os.Getenv("TASKSYNC_MODIFY_URL")
	if modifyURL == "" {
		modifyURL = "http://127.0.0.1:8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	notifyURL := os.Getenv("TASKSYNC_NOTIFY_URL")
	if notifyURL == "" {
		notifyURL = "ws://127.0.0.1:8081/ws"
	}

	log := logger.Get()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subs := []*printer{
		{name: "A", got: make(chan domain.ChangeEvent, 8)},
		{name: "B", got: make(chan domain.ChangeEvent, 8)},
	}
	for _, p := range subs {
		nc, err := client.DialNotify(ctx, notifyURL, p, log)
		if err != nil {
			logger.Fatal("dial", "subscriber", p.name, "error", err)
		}
		defer nc.Close()
		if err := nc.Subscribe(ctx); err != nil {
			logger.Fatal("subscribe", "subscriber", p.name, "error", err)
		}
	}

	api := client.NewModifyClient(modifyURL, nil)
	task := domain.Task{ID: "smoke-" + uuid.NewString(), Description: "smoke test task"}
	if _, err := api.AddTask(ctx, task); err != nil {
		logger.Fatal("add", "error", err)
	}
	if _, err := api.DeleteTask(ctx, task.ID); err != nil {
		logger.Fatal("delete", "error", err)
	}

	want := []domain.ChangeEvent{domain.Added(task), domain.Deleted(task.ID)}
	for _, p := range subs {
		for _, w := range want {
			select {
			case ev := <-p.got:
				if ev != w {
					logger.Fatal("unexpected event", "subscriber", p.name, "got", ev.Kind, "want", w.Kind)
				}
				log.Info("received", "subscriber", p.name, "event", ev.Kind, "task_id", ev.ID)
			case <-ctx.Done():
				logger.Fatal("timeout waiting for event", "subscriber", p.name, "want", w.Kind)
			}
		}
	}

	fmt.Println("smoke test finished")
}
