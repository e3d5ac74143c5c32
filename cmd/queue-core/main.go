package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/queue-core/internal/config"
	"qms/queue-core/internal/httpapi"
	"qms/queue-core/internal/hub"
	"qms/queue-core/internal/models"
	"qms/queue-core/internal/notifier"
	"qms/queue-core/internal/queue"
	"qms/queue-core/internal/store"
	"qms/queue-core/internal/store/memory"
	"qms/queue-core/internal/store/postgres"
	"qms/queue-core/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type hubSink struct {
	boards *hub.Hub
}

type ticketEvent struct {
	Type      string        `json:"type"`
	Ticket    models.Ticket `json:"ticket"`
	CreatedAt time.Time     `json:"created_at"`
}

func (s hubSink) TicketChanged(ticket models.Ticket, eventType string) {
	payload, err := json.Marshal(ticketEvent{Type: eventType, Ticket: ticket, CreatedAt: time.Now().UTC()})
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	s.boards.Broadcast(payload, hub.Subscription{BusinessID: ticket.BusinessID, QueuePointID: ticket.QueuePointID})
}

func main() {
	cfg := config.Load()

	shutdownTracing := telemetry.Setup("queue-core")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	var (
		tickets   store.TicketStore
		sequences store.SequenceStore
		directory store.BusinessDirectory
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connect error: %v", err)
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			log.Fatalf("database ping error: %v", err)
		}
		pg := postgres.NewStore(pool)
		tickets, sequences, directory = pg, pg, pg
		log.Printf("store=postgres")
	} else {
		mem := memory.NewStore()
		seedDevBusiness(mem)
		tickets, sequences, directory = mem, mem, mem
		log.Printf("store=memory")
	}

	boards := hub.New()
	facade := queue.NewFacade(directory, tickets, sequences, notifier.New(cfg.NotifierProvider), queue.SystemClock{}, queue.FacadeOptions{
		NotifyTimeout: cfg.NotifyTimeout,
		Sink:          hubSink{boards: boards},
	})

	api := httpapi.NewHandler(facade).Routes()
	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/healthz", api)
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, realtimeHandler(boards)))

	limiter := httpapi.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, cfg.BusinessRateLimitPerMin, cfg.BusinessRateLimitBurst)
	handler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "queue-core")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepLoop(rootCtx, facade, cfg)
	go pruneLoop(rootCtx, limiter)

	go func() {
		log.Printf("queue-core listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func realtimeHandler(boards *hub.Hub) func(sockjs.Session) {
	return func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 32)}
		boards.Register(client)
		defer boards.Unregister(client)

		go func() {
			for payload := range client.Send {
				if err := session.Send(string(payload)); err != nil {
					return
				}
			}
		}()

		for {
			raw, err := session.Recv()
			if err != nil {
				return
			}
			msg, ok := hub.ParseSubscribe([]byte(raw))
			if !ok {
				continue
			}
			if msg.Action == "unsubscribe" {
				boards.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			boards.UpdateSubscription(client, hub.Subscription{BusinessID: msg.BusinessID, QueuePointID: msg.QueuePointID})
		}
	}
}

func sweepLoop(ctx context.Context, facade *queue.Facade, cfg config.Config) {
	if cfg.AlertGrace <= 0 || cfg.AlertSweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.AlertSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := facade.SweepOverdueAlerts(ctx, cfg.AlertGrace, cfg.AlertSweepBatchSize)
			if err != nil {
				log.Printf("overdue alert sweep error: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("overdue alert sweep marked %d tickets no_show", swept)
			}
		}
	}
}

func pruneLoop(ctx context.Context, limiter *httpapi.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune(10 * time.Minute)
		}
	}
}

// seedDevBusiness registers a business for local runs without a database.
func seedDevBusiness(mem *memory.Store) {
	businessID := os.Getenv("DEV_BUSINESS_ID")
	if businessID == "" {
		return
	}
	branch := os.Getenv("DEV_BRANCH_CODE")
	if branch == "" {
		branch = "DEV"
	}
	mem.AddBusiness(models.Business{
		BusinessID: businessID,
		Kind:       models.KindIndividual,
		Name:       "Development",
		BranchCode: branch,
		Timezone:   "UTC",
	})
	log.Printf("seeded dev business id=%s branch=%s", businessID, branch)
}
