// Command watch checks that the monitor is up and prints its live results.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"EYE_MONITOR/go-backend/internal/handlers"
	"EYE_MONITOR/go-backend/internal/models"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var errDone = errors.New("done")

func main() {
	backend := flag.String("backend", "http://localhost:8081", "monitor HTTP address")
	grpcAddr := flag.String("grpc", "", "read results from this gRPC address instead of the websocket")
	password := flag.String("password", os.Getenv("DASHBOARD_PASSWORD"), "dashboard password")
	count := flag.Int("count", 0, "stop after this many results (0 = until interrupted)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkHealth(*backend); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	printer := newPrinter(*count)

	var err error
	if *grpcAddr != "" {
		err = watchGRPC(ctx, *grpcAddr, printer)
	} else {
		err = watchWebSocket(ctx, *backend, *password, printer)
	}
	if err != nil && !errors.Is(err, errDone) && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func checkHealth(backend string) error {
	fmt.Println("[TEST] Testing /api/health...")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(backend + "/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var status models.HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("unexpected health response: %s", string(body))
	}
	fmt.Printf("✓ Health: %s (landmarks=%v, database=%v, clients=%d)\n",
		status.Status, status.LandmarkService, status.Database, status.ActiveClients)
	return nil
}

func newPrinter(limit int) func(models.FrameResult) error {
	seen := 0
	return func(r models.FrameResult) error {
		alarm := ""
		if r.AlarmActive {
			alarm = "  DROWSINESS ALERT!"
		}
		fmt.Printf("#%-6d face=%d EAR=%.2f FPS=%5.1f blinks=%-4d rate=%.2f (%s) duration=%s %s%s\n",
			r.Seq, r.Face, r.EAR, r.FPS, r.Blinks, r.BlinkRate, r.RateLevel, r.DurationLevel, r.Alertness, alarm)

		seen++
		if limit > 0 && seen >= limit {
			return errDone
		}
		return nil
	}
}

func watchWebSocket(ctx context.Context, backend, password string, fn func(models.FrameResult) error) error {
	u, err := url.Parse(backend)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = "clientId=watch-" + time.Now().Format("20060102150405")

	header := http.Header{}
	if password != "" {
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("watch:"+password)))
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("websocket connect failed: %w", err)
	}
	defer conn.Close()
	fmt.Printf("✓ Connected to %s\n", u.String())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Type {
		case handlers.MessageWelcome:
			fmt.Printf("✓ %s\n", string(msg.Payload))
		case handlers.MessageFrameResult:
			var r models.FrameResult
			if err := json.Unmarshal(msg.Payload, &r); err != nil {
				return err
			}
			if err := fn(r); err != nil {
				return err
			}
		}
	}
}

func watchGRPC(ctx context.Context, addr string, fn func(models.FrameResult) error) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("✓ Watching %s%s\n", addr, handlers.WatchMethod)

	return handlers.WatchResults(ctx, conn, fn)
}
