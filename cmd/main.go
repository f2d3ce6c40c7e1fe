package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"lesson-rag/internal/chromemdb"
	"lesson-rag/internal/config"
	"lesson-rag/internal/db"
	"lesson-rag/internal/embedding"
	"lesson-rag/internal/helper"
	"lesson-rag/internal/ingest"
	"lesson-rag/internal/llmservice"
	"lesson-rag/internal/models"
	"lesson-rag/internal/rag"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Str("run", helper.RunID()).Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	loadDir := flag.String("load", "", "Directory of pre-chunked JSON files to ingest")
	materialFile := flag.String("file", "", "Raw teaching material file to parse and ingest")
	query := flag.String("query", "", "Lesson query to retrieve context for")
	subject := flag.String("subject", "", "Subject filter, e.g. 数学")
	grade := flag.String("grade", "", "Grade filter, e.g. 三年级 or 初一")
	maxTokens := flag.Int("max-tokens", 0, "Context budget override")
	answer := flag.Bool("answer", false, "Stream a completion instead of printing raw context")
	once := flag.Bool("once", false, "Use a single non-streaming completion with -answer")
	stats := flag.Bool("stats", false, "Print collection statistics")
	drop := flag.Bool("drop", false, "Drop the collection and exit")
	usePostgres := flag.Bool("postgres", false, "Use the Postgres/pgvector store instead of the embedded one")
	flag.Parse()

	cfg := loadConfig(*configPath)
	ctx := context.Background()

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	store, cleanup := openStore(ctx, cfg, embedder, *usePostgres)
	defer cleanup()

	switch {
	case *drop:
		if err := store.DeleteCollection(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error dropping collection")
		}
		log.Info().Msg("Collection dropped")
	case *stats:
		printStats(ctx, store)
	case *loadDir != "":
		loader := ingest.NewLoader(store, embedder, &cfg.RAG)
		report, err := loader.LoadDirectory(ctx, *loadDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading chunk directory")
		}
		helper.PrettyPrint(report)
	case *materialFile != "":
		loader := ingest.NewLoader(store, embedder, &cfg.RAG)
		total, loaded, err := loader.LoadMaterialFile(ctx, *materialFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading material file")
		}
		log.Info().Int("parsed", total).Int("loaded", loaded).Msg("Material file ingested")
	case *query != "":
		engine := rag.NewEngine(store, embedder, cfg)
		if *answer {
			runAnswer(ctx, engine, cfg, *query, *subject, *grade, *once)
		} else {
			runContext(ctx, engine, cfg, *query, *subject, *grade, *maxTokens)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal().Err(err).Msg("Error loading config")
		}
		log.Warn().Str("path", path).Msg("Config file not found, using defaults")
		cfg = config.Default()
	}
	return cfg
}

// openStore wires up the selected chunk store. The embedded store exports
// its collection on shutdown when running in memory.
func openStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, usePostgres bool) (rag.Store, func()) {
	if usePostgres {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		bundb := db.NewDB(sqldb, cfg.Database.Debug)
		store := db.NewStore(bundb, cfg.VectorDB.Dimensions)
		if err := store.InitDB(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		return store, func() { bundb.Close() }
	}

	if !cfg.VectorDB.InMemory {
		if err := helper.CreateFolder(cfg.VectorDB.Path); err != nil {
			log.Fatal().Err(err).Msg("Error creating vector database folder")
		}
	}
	store, err := chromemdb.New(cfg.VectorDB, embedding.ChromemFunc(embedder))
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector database")
	}
	if cfg.VectorDB.InMemory {
		// In-memory mode round-trips through an encrypted export file.
		if err := store.Import(ctx); err != nil {
			log.Debug().Err(err).Msg("No previous collection export to restore")
		}
	}
	cleanup := func() {
		if cfg.VectorDB.InMemory {
			if err := store.Export(ctx); err != nil {
				log.Warn().Err(err).Msg("Error exporting collection")
			}
		}
	}
	return store, cleanup
}

func printStats(ctx context.Context, store rag.Store) {
	s, ok := store.(interface {
		Stats(ctx context.Context) (*chromemdb.Stats, error)
	})
	if !ok {
		count, err := store.Count(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Error counting chunks")
		}
		fmt.Printf("chunks: %d\n", count)
		return
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error collecting statistics")
	}
	helper.PrettyPrint(stats)
}

func runContext(ctx context.Context, engine *rag.Engine, cfg *config.Config, query, subject, grade string, maxTokens int) {
	if maxTokens <= 0 {
		maxTokens = cfg.RAG.ContextMaxTokens
	}
	bundle, err := engine.GetRelevantContext(ctx, query, subject, grade, maxTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Error retrieving context")
	}
	helper.PrettyPrint(bundle)
}

func runAnswer(ctx context.Context, engine *rag.Engine, cfg *config.Config, query, subject, grade string, once bool) {
	var response *models.PromptResponse
	var err error

	if once {
		response, err = answerOnce(ctx, engine, cfg, query, subject, grade)
	} else {
		response, err = engine.Answer(ctx, query, subject, grade)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

// answerOnce builds the same prompt as the streaming path but runs one
// blocking completion through the shared LLM client.
func answerOnce(ctx context.Context, engine *rag.Engine, cfg *config.Config, query, subject, grade string) (*models.PromptResponse, error) {
	bundle, err := engine.GetRelevantContext(ctx, query, subject, grade, cfg.RAG.ContextMaxTokens)
	if err != nil {
		return nil, err
	}

	contextText := bundle.Context
	if contextText == "" {
		contextText = "（未检索到相关资料，请基于通用教学经验回答。）"
	}
	prompt := fmt.Sprintf(models.LessonPromptTemplate, contextText, query)

	resp, err := llmservice.GenerateContent(ctx, &cfg.InferLLM, nil, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  strings.Join(bundle.Sources, ", "),
		Content: llmservice.FirstChoice(resp),
	}, nil
}
