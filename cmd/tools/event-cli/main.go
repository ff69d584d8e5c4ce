package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/annel0/spacebobble/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "15:04:05"
)

// описания известных типов событий
var knownTypes = []struct {
	Type        string
	Description string
}{
	{eventbus.TypeSessionStarted, "набран минимум игроков, сессия запущена"},
	{eventbus.TypeSessionFinished, "все спасены или последний игрок ушёл"},
	{eventbus.TypeLeaderboardUpdated, "в таблицу рекордов добавлена запись"},
}

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "BOBBLE", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, types")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Source services filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 = follow forever)")
	)
	flag.Parse()

	switch *command {
	case "tail":
		bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
		if err != nil {
			log.Fatalf("❌ Failed to connect to NATS: %v", err)
		}
		defer bus.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := tailEvents(ctx, bus, eventbus.Filter{
			Types:   parseStringList(*eventTypes),
			Sources: parseStringList(*sources),
		}, *limit)
		if err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
		fmt.Printf("\n📊 Total events: %d\n", n)

	case "types":
		showTypes()

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, types")
		os.Exit(1)
	}
}

// tailEvents печатает новые события до отмены контекста или достижения лимита
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int) (int64, error) {
	fmt.Printf("🎬 Tailing events (types: %v, sources: %v)\n", f.Types, f.Sources)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var count int64
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		fmt.Print(formatEvent(ev))
		if n := atomic.AddInt64(&count, 1); limit > 0 && n >= int64(limit) {
			cancel()
		}
	})
	if err != nil {
		return 0, err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return atomic.LoadInt64(&count), nil
}

func showTypes() {
	fmt.Println("📋 Available event types")
	for _, t := range knownTypes {
		fmt.Printf("Type: %s\n", t.Type)
		fmt.Printf("  Subject: %s\n", eventbus.Subject(t.Type))
		fmt.Printf("  Description: %s\n", t.Description)
	}
}

// formatEvent выводит событие в читаемом формате
func formatEvent(ev *eventbus.Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s\n", ev.Timestamp.Local().Format(timeFormat), ev.Source, ev.EventType, ev.ID)

	// детали в зависимости от типа
	switch ev.EventType {
	case eventbus.TypeSessionStarted:
		var e eventbus.SessionStarted
		if ev.Decode(&e) == nil {
			fmt.Fprintf(&b, "  Session: %s Players: %v\n", e.SessionID, e.Players)
		}
	case eventbus.TypeSessionFinished:
		var e eventbus.SessionFinished
		if ev.Decode(&e) == nil {
			fmt.Fprintf(&b, "  Session: %s Saved: %d/%d Abandoned: %v\n", e.SessionID, e.Saved, e.Total, e.Abandoned)
		}
	case eventbus.TypeLeaderboardUpdated:
		var e eventbus.LeaderboardUpdated
		if ev.Decode(&e) == nil {
			fmt.Fprintf(&b, "  Mode: %s %s = %d\n", e.Mode, e.Name, e.Score)
		}
	default:
		fmt.Fprintf(&b, "  Payload: %s\n", ev.Payload)
	}
	return b.String()
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
