package procura

import "go.uber.org/zap"

type clientConfig struct {
	catalogPaths []string

	redisAddrs    []string
	redisPassword string
	snapshotDir   string
	snapshotKey   string
	forceRebuild  bool

	embedder            Embedder
	queryInstruction    string
	documentInstruction string
	batchSize           int

	parserAPIKey  string
	parserBaseURL string
	parserModel   string

	scoreThreshold float64
	logger         *zap.Logger
}

// Option configures the embedded client.
type Option func(*clientConfig)

// WithCatalog sets the CSV price lists the index is built from. Required
// unless a persisted index snapshot already exists.
func WithCatalog(paths ...string) Option {
	return func(c *clientConfig) { c.catalogPaths = paths }
}

// WithRedis stores the index snapshot and embedding cache in Redis instead
// of the local filesystem.
func WithRedis(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.redisAddrs = addrs
		c.redisPassword = password
	}
}

// WithSnapshotDir sets the directory for the file-backed snapshot store.
// Ignored when WithRedis is used. Default "data/index".
func WithSnapshotDir(dir string) Option {
	return func(c *clientConfig) { c.snapshotDir = dir }
}

// WithSnapshotKey overrides the snapshot storage key.
func WithSnapshotKey(key string) Option {
	return func(c *clientConfig) { c.snapshotKey = key }
}

// WithForceRebuild skips the persisted snapshot and rebuilds the index from
// the catalog on startup.
func WithForceRebuild() Option {
	return func(c *clientConfig) { c.forceRebuild = true }
}

// WithEmbedder plugs in a custom embedding provider. Required unless
// WithOpenAIEmbedder is used.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithOpenAIEmbedder configures the OpenAI-compatible embedding provider
// (e.g. Nebius). baseURL may be empty for api.openai.com.
func WithOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.embedder = newOpenAIEmbedder(apiKey, baseURL, model, dimensions)
	}
}

// WithInstructions sets the e5-style query/document prefixes, e.g.
// "query: " and "passage: ". Empty strings disable prefixing.
func WithInstructions(query, document string) Option {
	return func(c *clientConfig) {
		c.queryInstruction = query
		c.documentInstruction = document
	}
}

// WithBatchSize sets the embedding batch size for index builds.
func WithBatchSize(n int) Option {
	return func(c *clientConfig) { c.batchSize = n }
}

// WithOpenAIParser enables the structured natural-language request parser.
// Without it requests are decomposed by the rule-based layer only.
func WithOpenAIParser(apiKey, baseURL, model string) Option {
	return func(c *clientConfig) {
		c.parserAPIKey = apiKey
		c.parserBaseURL = baseURL
		c.parserModel = model
	}
}

// WithScoreThreshold drops hits scoring below the threshold. Default 0.
func WithScoreThreshold(t float64) Option {
	return func(c *clientConfig) { c.scoreThreshold = t }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
