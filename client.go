// Package procura embeds the quote pipeline in-process: catalog loading,
// vector index, request decomposition and cost roll-up behind one Client,
// without running the HTTP server.
package procura

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/catalog"
	"github.com/stroysnab-cloud/procura/internal/db"
	dbFile "github.com/stroysnab-cloud/procura/internal/db/file"
	dbRedis "github.com/stroysnab-cloud/procura/internal/db/redis"
	"github.com/stroysnab-cloud/procura/internal/domain"
	"github.com/stroysnab-cloud/procura/internal/index"
	"github.com/stroysnab-cloud/procura/internal/metrics"
	"github.com/stroysnab-cloud/procura/internal/repository/embcache"
	openaiTransport "github.com/stroysnab-cloud/procura/internal/transport/openai"
	decomposeuc "github.com/stroysnab-cloud/procura/internal/usecase/decompose"
	quoteuc "github.com/stroysnab-cloud/procura/internal/usecase/quote"
	searchuc "github.com/stroysnab-cloud/procura/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultTopK             = 10
)

// Client is the procura SDK entry point.
type Client struct {
	store          db.Store
	holder         *index.Holder
	searchSvc      *searchuc.Service
	quoteSvc       *quoteuc.Service
	scoreThreshold float64
}

// New builds the pipeline: connects the snapshot store, loads or builds the
// catalog index and wires the services. The context covers the readiness
// check and the index build.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		snapshotDir: "data/index",
		snapshotKey: domain.KeyPrefix + "index:catalog",
		batchSize:   64,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("procura: embedder required (use WithEmbedder or WithOpenAIEmbedder)")
	}

	store, hasRedis, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if hasRedis {
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("procura: database not ready: %w", err)
		}
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	docEmb := buildEmbedder(cfg, store, hasRedis, cfg.documentInstruction)
	queryEmb := buildEmbedder(cfg, store, hasRedis, cfg.queryInstruction)

	idx, err := loadOrBuildIndex(ctx, store, cfg, docEmb)
	if err != nil {
		store.Close()
		return nil, err
	}
	holder := index.NewHolder(idx)

	var parser decomposeuc.RequestParser
	if cfg.parserModel != "" {
		parser = openaiTransport.NewParser(&openaiTransport.ParserConfig{
			APIKey:  cfg.parserAPIKey,
			BaseURL: cfg.parserBaseURL,
			Model:   cfg.parserModel,
			Logger:  cfg.logger,
		})
	}
	decomposeSvc := decomposeuc.New(parser, cfg.logger)
	searchSvc := searchuc.New(holder, queryEmb)
	quoteSvc := quoteuc.New(decomposeSvc, searchSvc, cfg.scoreThreshold, cfg.logger)

	return &Client{
		store:          store,
		holder:         holder,
		searchSvc:      searchSvc,
		quoteSvc:       quoteSvc,
		scoreThreshold: cfg.scoreThreshold,
	}, nil
}

func createStore(cfg *clientConfig) (db.Store, bool, error) {
	if len(cfg.redisAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.redisAddrs,
			Password: cfg.redisPassword,
		})
		if err != nil {
			return nil, false, fmt.Errorf("procura: create redis store: %w", err)
		}
		return s, true, nil
	}

	s, err := dbFile.NewStore(cfg.snapshotDir)
	if err != nil {
		return nil, false, fmt.Errorf("procura: create file store: %w", err)
	}
	return s, false, nil
}

// buildEmbedder assembles the decorator chain: provider, Redis-backed cache
// when available, instruction prefix outermost so the cache key includes it.
func buildEmbedder(cfg *clientConfig, store db.Store, cache bool, instruction string) domain.Embedder {
	var emb domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	if cache {
		emb = embcache.New(emb, store, metrics.EmbeddingCacheTotal, cfg.logger)
	}
	if instruction != "" {
		emb = domain.NewInstructionEmbedder(emb, instruction)
	}
	return emb
}

func loadOrBuildIndex(
	ctx context.Context, store db.Store, cfg *clientConfig, embedder domain.Embedder,
) (*index.CatalogIndex, error) {
	if !cfg.forceRebuild {
		idx, err := index.Load(ctx, store, cfg.snapshotKey)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, domain.ErrIndexNotFound) {
			return nil, fmt.Errorf("procura: load index: %w", err)
		}
	}

	if len(cfg.catalogPaths) == 0 {
		return nil, errors.New("procura: no index snapshot and no catalog (use WithCatalog)")
	}

	records, err := catalog.NewLoader(cfg.logger).LoadAll(cfg.catalogPaths)
	if err != nil {
		return nil, fmt.Errorf("procura: load catalog: %w", err)
	}

	idx, err := index.Build(ctx, records, embedder, cfg.batchSize)
	if err != nil {
		return nil, fmt.Errorf("procura: build index: %w", err)
	}

	if err := idx.Persist(ctx, store, cfg.snapshotKey); err != nil {
		cfg.logger.Warn("Index snapshot not persisted", zap.Error(err))
	}
	return idx, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks snapshot store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// IndexLen returns the number of indexed catalog records.
func (c *Client) IndexLen() int { return c.holder.Len() }

// Quote runs the full pipeline for one free-text request: decomposition,
// per-item retrieval and cost roll-up.
func (c *Client) Quote(ctx context.Context, query string) (Quote, error) {
	res, err := c.quoteSvc.ProcessRequest(ctx, query)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: %w", err)
	}
	return fromQuote(res), nil
}

// Search returns the topK most similar catalog products. topK <= 0 uses the
// default of 10.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	hits, err := c.searchSvc.Search(ctx, query, topK, c.scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromHits(hits), nil
}

// SearchByCategory restricts Search results to a category substring match.
func (c *Client) SearchByCategory(
	ctx context.Context, query, category string, topK int,
) ([]SearchHit, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	hits, err := c.searchSvc.SearchByCategory(ctx, query, category, topK)
	if err != nil {
		return nil, fmt.Errorf("search by category: %w", err)
	}
	return fromHits(hits), nil
}

// Similar finds products close to a known catalog product. An unknown id
// yields no hits.
func (c *Client) Similar(ctx context.Context, productID int64, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	hits, err := c.searchSvc.GetSimilar(ctx, productID, topK)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}
	return fromHits(hits), nil
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := a.inner.(BatchEmbedder); ok {
		r, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return domain.BatchEmbeddingResult{
			Embeddings:   r.Embeddings,
			PromptTokens: r.PromptTokens,
			TotalTokens:  r.TotalTokens,
		}, nil
	}
	return domain.BatchFallback(ctx, a, texts)
}

// openaiEmbedder exposes the OpenAI-compatible transport through the public
// Embedder interface.
type openaiEmbedder struct {
	inner *openaiTransport.Embedder
}

func newOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) Embedder {
	return &openaiEmbedder{inner: openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Model:      model,
		Dimensions: dimensions,
		Logger:     zap.NewNop(),
	})}
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := e.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	return EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (e *openaiEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	r, err := e.inner.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, err
	}
	return BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
