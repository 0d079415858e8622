package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/ai"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/app"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/cache"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/config"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/index"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/model"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/pkg/pdfextract"
	rabbitmqClient "github.com/Drdr1/Offline-LLM-RAG-System/internal/platform/rabbitmq"
	redisClient "github.com/Drdr1/Offline-LLM-RAG-System/internal/platform/redis"
	sqliteClient "github.com/Drdr1/Offline-LLM-RAG-System/internal/platform/sqlite"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/repository"
	"github.com/Drdr1/Offline-LLM-RAG-System/internal/worker"
)

type App struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Index       *index.Index
	AI          *ai.Client
	AnswerCache *cache.AnswerCache

	IngestService *app.IngestService
	QueryService  *app.QueryService
	IngestWorker  *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	db, err := sqliteClient.New(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Document{}, &model.Chunk{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	var redisCli *redis.Client
	var answerCache *cache.AnswerCache
	if cfg.Redis.Enabled {
		redisCli, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		answerCache = cache.NewAnswerCache(redisCli, time.Duration(cfg.Redis.AnswerTTLSeconds)*time.Second)
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewClient(cfg.Ollama)
	idx, err := index.New(cfg.Ollama.EmbeddingDimension)
	if err != nil {
		return nil, err
	}

	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	publisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

	ingestService := app.NewIngestService(
		docRepo,
		chunkRepo,
		idx,
		aiClient,
		publisher,
		pdfextract.File,
		app.IngestConfig{
			ChunkSize: cfg.Chunking.ChunkSize,
			Overlap:   cfg.Chunking.Overlap,
			UploadDir: cfg.Storage.UploadDir,
		},
	)

	// Rebuild the in-memory index from persisted chunks and fail any
	// document a previous run left mid-pipeline.
	if err := ingestService.Recover(ctx); err != nil {
		return nil, fmt.Errorf("recover index failed: %w", err)
	}
	log.Printf("Index recovered: %d chunks across indexed documents", idx.Len())

	var answerCacher app.AnswerCacher
	if answerCache != nil {
		answerCacher = answerCache
	}
	queryService := app.NewQueryService(idx, aiClient, aiClient, answerCacher, app.QueryConfig{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	})

	var flusher worker.AnswerFlusher
	if answerCache != nil {
		flusher = answerCache
	}
	ingestWorker := worker.NewIngestWorker(mqConn, ingestService, flusher, cfg.RabbitMQ.IngestQueue)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:        cfg,
		DB:            db,
		Redis:         redisCli,
		MQConn:        mqConn,
		Index:         idx,
		AI:            aiClient,
		AnswerCache:   answerCache,
		IngestService: ingestService,
		QueryService:  queryService,
		IngestWorker:  ingestWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
