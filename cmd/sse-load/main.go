// Command sse-load holds many connections open on the todo event stream and
// reports how many events arrived.
package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

type counters struct {
	attempts uint64
	failures uint64
	todos    uint64
	cues     uint64
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// readStream counts named events until r ends or ctx is done.
func readStream(ctx context.Context, r io.Reader, c *counters) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		switch name, ok := strings.CutPrefix(scanner.Text(), "event: "); {
		case !ok:
		case name == "todos":
			atomic.AddUint64(&c.todos, 1)
		case name == "cue":
			atomic.AddUint64(&c.cues, 1)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func connect(ctx context.Context, client *http.Client, streamURL string, c *counters) {
	backoff := time.Second
	fail := func() {
		atomic.AddUint64(&c.failures, 1)
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
	for ctx.Err() == nil {
		atomic.AddUint64(&c.attempts, 1)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
		if err != nil {
			fail()
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				fail()
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			fail()
			continue
		}
		backoff = time.Second
		readStream(ctx, resp.Body, c)
		resp.Body.Close()
		if ctx.Err() == nil {
			fail()
		}
	}
}

func run(ctx context.Context, streamURL string, conns int) *counters {
	var c counters
	client := &http.Client{}
	var wg sync.WaitGroup
	wg.Add(conns)
	for range conns {
		go func() {
			defer wg.Done()
			connect(ctx, client, streamURL, &c)
		}()
	}
	wg.Wait()
	return &c
}

func main() {
	streamURL := getenv("STREAM_URL", "http://localhost:8080/api/stream")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	c := run(ctx, streamURL, conns)

	failureRate := 0.0
	if c.attempts > 0 {
		failureRate = float64(c.failures) / float64(c.attempts)
	}
	log.WithFields(log.Fields{
		"connections":         conns,
		"duration_sec":        int(duration.Seconds()),
		"todos_events":        c.todos,
		"cue_events":          c.cues,
		"connection_failures": c.failures,
	}).Info("sse load finished")
	// every connection gets a snapshot on connect, so zero means the stream is broken
	if c.todos == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}
