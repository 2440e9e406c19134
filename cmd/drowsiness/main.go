package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EYE_MONITOR/go-backend/internal/alarm"
	"EYE_MONITOR/go-backend/internal/capture"
	"EYE_MONITOR/go-backend/internal/config"
	"EYE_MONITOR/go-backend/internal/database"
	"EYE_MONITOR/go-backend/internal/emitter"
	"EYE_MONITOR/go-backend/internal/framelog"
	"EYE_MONITOR/go-backend/internal/handlers"
	"EYE_MONITOR/go-backend/internal/logging"
	"EYE_MONITOR/go-backend/internal/models"
	"EYE_MONITOR/go-backend/internal/repository"
	"EYE_MONITOR/go-backend/internal/services"
	"EYE_MONITOR/go-backend/internal/session"
	"EYE_MONITOR/go-backend/internal/video"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// errSessionEnded stops the servers once the monitoring session is over.
var errSessionEnded = errors.New("session ended")

func main() {
	flags, err := config.ParseFlags(os.Args[0], os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	level := cfg.LogLevel
	if flags.Debug {
		level = "debug"
	}
	logging.InitLogger(level, cfg.IsDev())

	thresholds, err := config.LoadThresholds(flags.Thresholds)
	if err != nil {
		slog.Error("invalid thresholds", "error", err)
		os.Exit(2)
	}

	if err := run(cfg, flags, thresholds); err != nil {
		slog.Error("monitor stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("goodbye")
}

func run(cfg *config.Config, flags *config.Flags, thresholds config.Thresholds) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := services.GetMetrics()
	sessionID := uuid.NewString()

	slog.Info("starting drowsiness monitor",
		"session_id", sessionID,
		"environment", cfg.Environment,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"landmark_service", cfg.LandmarkServiceURL,
		"shape_predictor", flags.ShapePredictor,
	)

	landmarks, err := services.NewLandmarkClient(cfg.LandmarkServiceURL, flags.ShapePredictor)
	if err != nil {
		return err
	}
	defer landmarks.Close()

	source, err := openSource(flags, cfg.FrameWidth)
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrCapture, err)
	}

	var (
		db   *sqlx.DB
		repo *repository.SessionRepo
	)
	if cfg.DatabaseEnabled() {
		slog.Info("connecting to database", "dsn", cfg.DSNForLog())
		db, err = database.Connect(ctx, cfg.DSN())
		if err != nil {
			slog.Warn("database unavailable, continuing without persistence", "error", err)
		} else {
			defer database.Close(db)
			repo = repository.New(db)
		}
	}

	dispatcher := alarm.NewDispatcher(alarm.DefaultTimeout, metrics)
	if flags.Alarm != "" {
		snd, err := alarm.NewSoundNotifier(flags.Alarm)
		if err != nil {
			slog.Warn("alarm sound disabled", "error", err)
		} else {
			dispatcher.Add("sound", snd)
		}
	}
	if cfg.MQTTEnabled() {
		em := emitter.NewMQTTEmitter(cfg.MQTTBroker, cfg.MQTTTopic, "eye-monitor-"+sessionID[:8])
		if err := em.Connect(ctx); err != nil {
			slog.Warn("mqtt alarms disabled", "error", err)
		} else {
			defer em.Disconnect()
			dispatcher.Add("mqtt", em)
		}
	}
	if repo != nil {
		dispatcher.Add("events", alarm.NotifierFunc(func(ctx context.Context, ev models.AlarmEvent) error {
			_, err := repo.InsertEvent(ctx, models.Event{
				SessionID:    ev.SessionID,
				Kind:         models.EventDrowsinessAlarm,
				BlinkCount:   ev.BlinkCount,
				ClosedFrames: ev.ClosedFrames,
				CreatedAt:    ev.RaisedAt,
			})
			return err
		}))
	}

	sinks, err := openSinks(flags, repo)
	if err != nil {
		source.Close()
		return err
	}

	hub := handlers.NewHub(metrics)

	opts := session.Options{
		SessionID: sessionID,
		Camera:    flags.Webcam,
		Blink:     thresholds.Blink,
		Rate:      thresholds.Rate,
		Publisher: hub,
		Alarm:     dispatcher,
		Metrics:   metrics,
	}
	if len(sinks) > 0 {
		opts.Recorder = sinks
	}
	if repo != nil {
		opts.Store = repo
	}
	if flags.Display {
		win := video.NewWindow("Frame")
		defer win.Close()
		opts.Viewer = win
	}
	driver := session.New(source, landmarks, opts)

	api := &handlers.API{
		Hub:          hub,
		Latest:       driver,
		Landmarks:    landmarks,
		Metrics:      metrics,
		PasswordHash: cfg.DashboardPasswordHash,
	}
	if repo != nil {
		api.Store = repo
		api.DBPing = func(ctx context.Context) bool { return database.Ping(ctx, db) }
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handlers.NewRouter(api),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(50*1024*1024),
		grpc.MaxSendMsgSize(50*1024*1024),
	)
	grpcHandler := handlers.NewGRPCHandler(hub)
	grpcHandler.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		slog.Info("gRPC server listening", "port", cfg.GRPCPort)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		slog.Info("HTTP server listening",
			"port", cfg.HTTPPort,
			"websocket", "ws://localhost:"+cfg.HTTPPort+"/ws",
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		summary, err := driver.Run(gctx)
		if cerr := sinks.Close(); cerr != nil {
			slog.Error("failed to close frame log", "error", cerr)
		}
		slog.Info("session summary",
			"session_id", summary.SessionID,
			"frames", summary.Frames,
			"blinks", summary.TotalBlinks,
			"blink_rate", summary.BlinkRate,
			"alarms", summary.Alarms,
			"skipped_faces", summary.Skipped,
		)
		if err != nil {
			return err
		}
		return errSessionEnded
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdown(httpServer, grpcServer, grpcHandler, hub)
		return nil
	})

	err = g.Wait()

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if werr := dispatcher.Wait(waitCtx); werr != nil {
		slog.Warn("alarm notifiers still running at exit", "error", werr)
	}

	if errors.Is(err, errSessionEnded) {
		return nil
	}
	return err
}

func openSource(flags *config.Flags, width int) (capture.Source, error) {
	if flags.FramesDir != "" {
		slog.Info("replaying frames", "dir", flags.FramesDir)
		return capture.OpenReplay(flags.FramesDir, width)
	}
	slog.Info("starting video stream", "webcam", flags.Webcam)
	return video.OpenWebcam(flags.Webcam, width)
}

func openSinks(flags *config.Flags, repo *repository.SessionRepo) (framelog.Multi, error) {
	var sinks framelog.Multi
	if flags.LogCSV != "" {
		s, err := framelog.NewCSVSink(flags.LogCSV)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if flags.ExportXLSX != "" {
		s, err := framelog.NewXLSXSink(flags.ExportXLSX)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if repo != nil {
		sinks = append(sinks, framelog.NewDBSink(repo, framelog.DefaultBatchSize))
	}
	return sinks, nil
}

func shutdown(httpServer *http.Server, grpcServer *grpc.Server, grpcHandler *handlers.GRPCHandler, hub *handlers.Hub) {
	slog.Info("shutting down")

	grpcHandler.Shutdown()
	hub.Close()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("gRPC server stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("forcing gRPC shutdown")
		grpcServer.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}
