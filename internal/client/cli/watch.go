package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/infirmary/internal/client/conflict"
	"github.com/iudanet/infirmary/internal/client/connectivity"
	"github.com/iudanet/infirmary/internal/models"
)

// WatchOptions флаги команды watch
type WatchOptions struct {
	ProbeInterval time.Duration // ProbeInterval период проверки связи
	SyncEvery     time.Duration // SyncEvery период синхронизации в online, 0 - только при восстановлении связи
}

// runWatch следит за связью с сервером до отмены ctx. При переходе
// offline -> online запускает синхронизацию, если включен auto_sync.
func (c *Cli) runWatch(ctx context.Context, opts WatchOptions) error {
	if _, err := c.auth.Restore(ctx); err != nil {
		return fmt.Errorf("%w (run 'infirmary login')", err)
	}

	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = c.cfg.ProbeInterval
	}

	changes := c.monitor.Subscribe()
	defer c.monitor.Unsubscribe(changes)
	events := c.resolver.Subscribe()
	defer c.resolver.Unsubscribe(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.monitor.Run(ctx, c.provider, opts.ProbeInterval)
	}()
	defer func() { <-done }()

	var tick <-chan time.Time
	if opts.SyncEvery > 0 {
		ticker := time.NewTicker(opts.SyncEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.io.Printf("Watching %s (Ctrl+C to stop)\n", c.cfg.ServerURL)
	for {
		select {
		case <-ctx.Done():
			c.io.Println("Stopped.")
			return nil
		case change := <-changes:
			c.printChange(change)
			if change.Online && c.cfg.AutoSync {
				c.syncInWatch(ctx)
			}
		case event := <-events:
			c.printConflictEvent(event)
		case <-tick:
			if c.monitor.Online() {
				c.syncInWatch(ctx)
			}
		}
	}
}

func (c *Cli) syncInWatch(ctx context.Context) {
	result, err := c.engine.FullSync(ctx)
	if err != nil {
		if errors.Is(err, models.ErrOffline) || ctx.Err() != nil {
			return
		}
		c.io.Printf("%s sync failed: %v\n", red("✗"), err)
		return
	}

	push, pull := result.PushTotal(), result.PullTotal()
	c.io.Printf("%s %s synced: pushed %d, pulled %d, conflicts %d, errors %d\n",
		formatTime(result.FinishedAt), green("✓"), push.Success, pull.Updated, push.Conflicts, len(result.Errors))
}

func (c *Cli) printChange(change connectivity.Change) {
	if change.Online {
		c.io.Printf("%s %s\n", formatTime(change.At), green("online"))
		return
	}
	c.io.Printf("%s %s: %v\n", formatTime(change.At), red("offline"), change.Err)
}

func (c *Cli) printConflictEvent(event conflict.Event) {
	cf := event.Conflict
	key := models.EntityKey(cf.EntityType, cf.EntityID)
	switch event.Type {
	case conflict.EventDetected:
		c.io.Printf("%s conflict on %s (%s)\n", yellow("!"), key, cf.TempID)
	case conflict.EventResolved:
		c.io.Printf("%s conflict on %s resolved\n", green("✓"), key)
	case conflict.EventFailed:
		c.io.Printf("%s conflict on %s: %v\n", red("✗"), key, event.Err)
	}
}
