// Command sse_load opens many concurrent connections to the dashboard view stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		headerAccept string
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8000/view/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.StringVar(&headerAccept, "accept", "text/event-stream", "value for Accept header")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if rampUp == 0 {
		rampUp = defaultRamp(connections)
	}

	log.Printf("starting SSE load: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, testDuration, rampUp)

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if testDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, testDuration)
		defer stop()
	}

	var (
		st    stats
		wg    sync.WaitGroup
		start = time.Now()
		every = rampInterval(rampUp, connections)
	)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("status: %s elapsed=%s", &st, time.Since(start).Truncate(time.Second))
			}
		}
	}()

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && every > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(every):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, client, targetURL, headerAccept, &st)
		}()
	}

	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("done: %s elapsed=%s views/s=%.2f\n",
		&st, elapsed.Truncate(time.Millisecond), float64(st.views.Load())/elapsed.Seconds())
}
