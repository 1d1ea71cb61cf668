package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/config"
	"github.com/abhisek/dsatutor/internal/llm"
	"github.com/abhisek/dsatutor/internal/logger"
	"github.com/abhisek/dsatutor/internal/retriever"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
)

// runtime is every long-lived component a command may need.
type runtime struct {
	cfg         *config.Config
	log         *zap.Logger
	store       *store.Store
	provider    llm.Provider
	redis       *redis.Client
	attachments *attachment.Preprocessor
	tutor       *tutor.Processor

	closers []func() error
}

// buildRuntime opens the store and wires the provider, retriever and turn
// processor. Logs go to logOut.
func buildRuntime(cmd *cobra.Command, logOut io.Writer) (*runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rt := &runtime{cfg: cfg, log: logger.NewWithWriter(cfg.Log, logOut)}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	rt.store, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, rt.store.Close)

	rt.provider, err = llm.NewProvider(ctx, cfg.LLM, rt.store, rt.log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}

	if cfg.Redis.Address != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, rt.redis.Close)
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.log.Warn("redis unreachable; continuing without it", zap.String("address", cfg.Redis.Address), zap.Error(err))
		}
	}

	r, err := rt.buildRetriever()
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.attachments = attachment.New(cfg.Attachments.MaxBytes)

	tc := tutor.DefaultConfig()
	tc.K = cfg.Retriever.K
	tc.MinPassageChars = cfg.Tutor.MinPassageChars
	tc.Answer.Temperature = cfg.Tutor.Temperature
	tc.Answer.HistoryMessages = cfg.Tutor.HistoryMessages
	tc.Schedule.Days = cfg.Analysis.Days
	tc.Schedule.Turns = cfg.Analysis.Turns
	tc.Schedule.PromoteThreshold = cfg.Analysis.PromoteThreshold
	tc.Schedule.DemoteThreshold = cfg.Analysis.DemoteThreshold

	rt.tutor = tutor.New(tutor.Deps{
		Store:       rt.store,
		Provider:    rt.provider,
		Retriever:   r,
		Attachments: rt.attachments,
		Log:         rt.log,
	}, tc)
	return rt, nil
}

func (rt *runtime) buildRetriever() (retriever.Retriever, error) {
	rc := rt.cfg.Retriever
	if rc.QdrantHost == "" {
		rt.log.Warn("no passage index configured; answers will not be grounded")
		return retriever.Nop{}, nil
	}

	embedder, err := retriever.NewOpenAIEmbedder(rc.EmbeddingAPIKey, rc.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	if rt.redis != nil {
		embedder = retriever.NewCachedEmbedder(embedder, rt.redis, rc.EmbeddingModel, 0, rt.log)
	}

	q, err := retriever.NewQdrant(retriever.QdrantConfig{
		Host:       rc.QdrantHost,
		Port:       rc.QdrantPort,
		APIKey:     rc.QdrantAPIKey,
		UseTLS:     rc.QdrantTLS,
		Collection: rc.Collection,
	}, embedder, rt.log)
	if err != nil {
		return nil, fmt.Errorf("connect passage index: %w", err)
	}
	rt.closers = append(rt.closers, q.Close)
	return retriever.WithTimeout(q, rc.Timeout, rt.log), nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if rt.log != nil {
		_ = rt.log.Sync()
	}
	return errors.Join(errs...)
}

// learnerEmail returns --user, then DSATUTOR_USER, then a local address
// derived from the OS account.
func learnerEmail(cmd *cobra.Command) string {
	if e, _ := cmd.Flags().GetString("user"); e != "" {
		return strings.TrimSpace(e)
	}
	if e := os.Getenv("DSATUTOR_USER"); e != "" {
		return strings.TrimSpace(e)
	}
	name := os.Getenv("USER")
	if name == "" {
		name = "learner"
	}
	return name + "@localhost"
}

// resolveUser returns the learner account for the current email, creating
// it when create is set.
func resolveUser(ctx context.Context, cmd *cobra.Command, st *store.Store, create bool) (*store.User, error) {
	email := learnerEmail(cmd)
	u, err := st.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) || !create {
		return nil, err
	}
	return st.CreateUser(ctx, email, strings.SplitN(email, "@", 2)[0], nil)
}

// logFile opens the chat log next to the database so log lines do not
// corrupt the terminal UI.
func logFile(cmd *cobra.Command) (*os.File, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(filepath.Dir(dbPath), "dsatutor.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
