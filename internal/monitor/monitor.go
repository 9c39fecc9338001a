package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitget-trader/internal/events"
)

// Monitor watches risk alerts on the event bus and hands them to AlertFn.
// Rollback failures and similar conditions need operator attention beyond
// the normal log stream.
type Monitor struct {
	Bus     *events.Bus
	AlertFn func(string)
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	if m.AlertFn == nil {
		m.AlertFn = func(msg string) { log.Printf("ALERT %s", msg) }
	}
	stream, unsub := m.Bus.Subscribe(events.EventRiskAlert, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.AlertFn(formatAlert(msg))
			}
		}
	}()
}

func formatAlert(msg any) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + describe(msg)
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		kind, _ := t["type"].(string)
		symbol, _ := t["symbol"].(string)
		errMsg, _ := t["error"].(string)
		if kind == "" {
			return fmt.Sprintf("%v", t)
		}
		if errMsg != "" {
			return fmt.Sprintf("%s %s: %s", kind, symbol, errMsg)
		}
		return fmt.Sprintf("%s %s", kind, symbol)
	default:
		return fmt.Sprintf("%v", v)
	}
}
