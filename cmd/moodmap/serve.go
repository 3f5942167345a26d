package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agenthands/moodmap/internal/config"
	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/llm"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
	"github.com/agenthands/moodmap/internal/server"
	"github.com/agenthands/moodmap/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored scores, briefings and similarity search over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	c, err := newClients(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	handle := &index.Handle{}
	if gen, err := restoreGeneration(ctx, cfg, st, c.Embedder, log, m); err != nil {
		log.Warn("serving without an index", "error", err)
	} else {
		handle.Publish(gen)
		m.SetIndexSize(gen.Len())
	}

	if cfg.Log.Mode == "prod" || cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewServer(st, handle, m, log).SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

// restoreGeneration loads the stored vectors into a generation. When they do
// not form a consistent index, the stored documents are embedded again.
func restoreGeneration(ctx context.Context, cfg *config.Config, st *store.Store, emb llm.EmbedderClient, log *logger.Logger, m *metrics.Metrics) (*index.Generation, error) {
	docs, err := st.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("store %s has no documents", cfg.Store.Path)
	}

	records, err := st.Embeddings(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := index.NewGeneration(uuid.New().String(), time.Now().UTC(), docs, records, emb)
	if err == nil && gen.Len() == len(docs) {
		gen = gen.WithMaxChars(cfg.Index.MaxChars)
		log.Info("restored index from store", "generation_id", gen.ID, "documents", gen.Len())
		return gen, nil
	}
	if err != nil {
		log.Warn("stored embeddings unusable, rebuilding", "error", err)
	} else {
		log.Info("stored embeddings incomplete, rebuilding", "stored", gen.Len(), "documents", len(docs))
	}
	return newBuilder(cfg, emb, log, m).Build(ctx, docs)
}
