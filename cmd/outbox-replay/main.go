// outbox-replay requeues dead outbox events back to pending so the worker
// picks them up again.
//
// Usage (from backend directory):
//   go run ./cmd/outbox-replay --business <id> --all
//   go run ./cmd/outbox-replay --business <id> --events id1,id2
//   go run ./cmd/outbox-replay --business <id> --list
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/models"
)

func main() {
	businessId := flag.String("business", strings.TrimSpace(os.Getenv("REPLAY_BUSINESS_ID")), "Business id (required)")
	events := flag.String("events", "", "Comma-separated event ids to requeue")
	all := flag.Bool("all", false, "Requeue every dead event for the business")
	list := flag.Bool("list", false, "List dead events instead of requeueing")
	limit := flag.Int("limit", 100, "Max events to list with --list")
	flag.Parse()

	if strings.TrimSpace(*businessId) == "" {
		fmt.Fprintln(os.Stderr, "missing required --business (or REPLAY_BUSINESS_ID)")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if *list {
		dead, err := models.ListDeadOutboxEvents(ctx, *businessId, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list dead events: %v\n", err)
			os.Exit(1)
		}
		if len(dead) == 0 {
			fmt.Println("no dead events")
			return
		}
		for _, ev := range dead {
			lastErr := ""
			if ev.ErrorMessage != nil {
				lastErr = *ev.ErrorMessage
			}
			fmt.Printf("%s  type=%s device=%s attempts=%d error=%q\n",
				ev.ID, ev.EventType, ev.DeviceId, ev.AttemptCount, lastErr)
		}
		return
	}

	var count int64
	var err error
	switch {
	case *all:
		count, err = models.RequeueAllDead(ctx, *businessId)
	case strings.TrimSpace(*events) != "":
		ids := []string{}
		for _, id := range strings.Split(*events, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		// nil device scope: ops replay is not pinned to the submitting device.
		count, err = models.RequeueOutboxEvents(ctx, *businessId, ids, nil)
	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass --all, --events, or --list")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("requeued %d event(s) for business %s\n", count, *businessId)
}
