// Package observ provides the decision core's structured event log and an
// in-process metrics registry. Events are one JSON object per line; metrics
// are exposed as a JSON dump over HTTP for quick checks.
package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

// Log emits a single structured event line. Every admission denial, lifecycle
// instruction, phase transition and protocol escalation goes through here with
// a machine-readable reason code.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}
