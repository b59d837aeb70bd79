package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	lines       atomic.Int64
	views       atomic.Int64
}

func (s *stats) String() string {
	return fmt.Sprintf("connected=%s connect_errs=%s stream_errs=%s lines=%s views=%s",
		humanize.Comma(s.connected.Load()),
		humanize.Comma(s.connectErrs.Load()),
		humanize.Comma(s.streamErrs.Load()),
		humanize.Comma(s.lines.Load()),
		humanize.Comma(s.views.Load()),
	)
}

// stream holds one SSE connection open until ctx is done or the server ends it.
func stream(ctx context.Context, client *http.Client, url, accept string, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}

	st.connected.Add(1)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				st.streamErrs.Add(1)
			}
			return
		}
		line = strings.TrimRight(line, "\r\n")
		// heartbeats start with ':'
		if line == "" || line[0] == ':' {
			continue
		}
		st.lines.Add(1)
		if line == "event: view" {
			st.views.Add(1)
		}
	}
}

// rampInterval spreads connection starts across ramp.
func rampInterval(ramp time.Duration, conns int) time.Duration {
	if ramp <= 0 || conns <= 0 {
		return 0
	}
	return ramp / time.Duration(conns)
}

// defaultRamp is one second per 500 connections, at least one second, for large runs.
func defaultRamp(conns int) time.Duration {
	if conns <= 100 {
		return 0
	}
	ramp := time.Duration(conns/500) * time.Second
	if ramp < time.Second {
		ramp = time.Second
	}
	return ramp
}
