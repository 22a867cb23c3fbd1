// Package server exposes the chat and ingestion endpoints over HTTP.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skyserve/drishti/internal/answer"
	"github.com/skyserve/drishti/internal/bot"
	"github.com/skyserve/drishti/internal/config"
	"github.com/skyserve/drishti/internal/extract"
	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/ingest"
	"github.com/skyserve/drishti/internal/llm"
	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/nlu"
	"github.com/skyserve/drishti/internal/ontology"
	"github.com/skyserve/drishti/internal/passage"
	"github.com/skyserve/drishti/internal/planner"
)

type Server struct {
	Engine    *bot.Engine
	Scheduler *ingest.Scheduler
	Sources   []ingest.Source

	cfg *config.Config
	log *logger.Logger
}

// New wires a server from prebuilt components, for tests and the CLI.
func New(engine *bot.Engine, scheduler *ingest.Scheduler, sources []ingest.Source, cfg *config.Config, lg *logger.Logger) *Server {
	return &Server{
		Engine:    engine,
		Scheduler: scheduler,
		Sources:   sources,
		cfg:       cfg,
		log:       lg,
	}
}

// NewFromConfig builds the full pipeline from the config file and
// environment. Failures here are fatal since the process cannot serve.
func NewFromConfig() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("could not load %s: %v, using defaults", cfgPath, err)
		cfg = config.Default()
	}
	applyEnvOverrides(cfg)

	lg, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	ontPath := cfg.Ontology.Path
	if ontPath == "" {
		ontPath = "config/ontology.toml"
	}
	ont, err := ontology.Load(ontPath)
	if err != nil {
		lg.Fatal("failed to load ontology", "path", ontPath, "error", err)
	}

	var store graph.Store
	switch strings.ToLower(cfg.Graph.Backend) {
	case "memgraph":
		mg, err := graph.NewMemgraphStore(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.VisitCeiling)
		if err != nil {
			lg.Fatal("failed to connect to memgraph", "uri", cfg.Graph.URI, "error", err)
		}
		if err := mg.BuildIndices(ctx); err != nil {
			lg.Warn("failed to build indices", "error", err)
		}
		store = mg
	default:
		store = graph.NewMemoryStore(cfg.Graph.VisitCeiling)
	}

	passages, err := passage.Open(cfg.Passages.Path)
	if err != nil {
		lg.Fatal("failed to open passage store", "path", cfg.Passages.Path, "error", err)
	}

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		lg.Fatal("failed to initialize LLM client", "error", err)
	}

	extractor := extract.NewExtractor(ont, store, llmClient, lg, extract.Config{
		AliasMatchThreshold: cfg.Ingest.AliasMatchThreshold,
		RuleConfidence:      cfg.Ingest.RuleConfidence,
		TableConfidence:     cfg.Ingest.TableConfidence,
		UseModelExtraction:  cfg.Ingest.UseModelExtraction,
	})
	coord := ingest.NewCoordinator(store, passages, extractor, ont, lg, ingest.Config{
		AliasMatchThreshold: cfg.Ingest.AliasMatchThreshold,
		CorroborationBonus:  cfg.Ingest.CorroborationBonus,
		MaxConfidence:       cfg.Ingest.MaxConfidence,
	})
	scheduler := ingest.NewScheduler(coord, lg, cfg.Ingest.Parallelism)

	und := nlu.NewUnderstander(ont, extractor.Detector(), lg)
	pl := planner.New(planner.Config{
		MaxHopsCap:   cfg.Graph.MaxHopsCap,
		VisitCeiling: cfg.Graph.VisitCeiling,
	})
	synth := answer.NewSynthesizer(answer.Config{
		MinConfidence: cfg.Answer.MinConfidence,
		UseGenerative: cfg.Answer.UseGenerative,
	}, llmClient, lg)

	// Embedding similarity ranks fallback passages when the provider has an
	// embedding endpoint; otherwise the model ranks them by prompt.
	var reranker llm.RerankerClient
	switch {
	case embedder != nil:
		reranker = llm.NewEmbeddingReranker(embedder)
	case llmClient != nil:
		reranker = llm.NewPassageReranker(llmClient)
	}

	engine := bot.NewEngine(und, pl, store, passages, synth, reranker, lg, bot.Config{
		QueryTimeout:  cfg.QueryTimeout(),
		FallbackLimit: cfg.Query.FallbackLimit,
	})

	return New(engine, scheduler, configuredSources(cfg), cfg, lg)
}

func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("GRAPH_BACKEND"); v != "" {
		cfg.Graph.Backend = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		cfg.Graph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
}

func configuredSources(cfg *config.Config) []ingest.Source {
	var sources []ingest.Source
	if cfg.Ingest.SourceDir != "" {
		sources = append(sources, ingest.DirSource{Dir: cfg.Ingest.SourceDir})
	}
	if len(cfg.Ingest.SourceURLs) > 0 {
		sources = append(sources, ingest.URLSource{SourceName: "portal", URLs: cfg.Ingest.SourceURLs})
	}
	return sources
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/chat", s.Chat)
	r.POST("/ingest", s.Ingest)
	r.GET("/healthz", s.Healthz)

	return r
}

// Run starts ingestion cycles in the background and serves HTTP.
func (s *Server) Run(ctx context.Context) error {
	if s.Scheduler != nil && len(s.Sources) > 0 {
		go s.Scheduler.Start(ctx, s.Sources, s.cfg.RescrapeInterval())
	}
	return s.SetupRouter().Run(":" + s.cfg.Server.Port)
}

type ChatRequest struct {
	Message string `json:"message"`
}

func (s *Server) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
		return
	}

	reply, err := s.Engine.Answer(c.Request.Context(), req.Message)
	if err != nil {
		s.log.Error("failed to answer", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// Ingest triggers one re-scrape cycle. The cycle itself suppresses
// overlapping runs per source, so repeated webhooks are safe.
func (s *Server) Ingest(c *gin.Context) {
	if s.Scheduler == nil || len(s.Sources) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No ingestion sources configured"})
		return
	}
	go s.Scheduler.RunCycle(context.Background(), s.Sources)
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
