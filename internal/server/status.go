package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/assetpipe/internal/pipeline"
)

// handleStatus renders the status page listing the last run of every task.
func (s *DevServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routePrefix {
		http.NotFound(w, r)
		return
	}

	var events []pipeline.Event
	if s.status != nil {
		events = s.status.Snapshot()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage(s.cfg.Addr(), s.hub.ConnectedClients(), events).Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to render status page")
	}
}

func statusPage(addr string, clients int, events []pipeline.Event) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := func(s string) string { return templ.EscapeString(s) }

		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>assetpipe</title>
<style>
body{font:14px/1.5 sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse}
td,th{padding:.3rem .8rem;border-bottom:1px solid #ddd;text-align:left}
.SUCCESS{color:#17803d}.FAILED{color:#b91c1c}.RUNNING{color:#b45309}
</style>
</head>
<body>
<h1>assetpipe</h1>
<p>Serving on %s &middot; %d live-reload client(s)</p>
`, e(addr), clients); err != nil {
			return err
		}

		if len(events) == 0 {
			_, err := io.WriteString(w, "<p>No tasks have run yet.</p>\n</body>\n</html>\n")
			return err
		}

		if _, err := io.WriteString(w, "<table>\n<tr><th>Task</th><th>Status</th><th>Started</th><th>Duration</th><th>Error</th></tr>\n"); err != nil {
			return err
		}
		for _, ev := range events {
			var errText, duration string
			if ev.Err != nil {
				errText = ev.Err.Error()
			}
			if ev.Status != pipeline.StatusRunning {
				duration = ev.Duration.Round(time.Millisecond).String()
			}
			if _, err := fmt.Fprintf(w, "<tr><td>%s</td><td class=%q>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				e(ev.Task),
				string(ev.Status),
				e(string(ev.Status)),
				ev.Started.Format(time.TimeOnly),
				duration,
				e(errText),
			); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "</table>\n</body>\n</html>\n")
		return err
	})
}
