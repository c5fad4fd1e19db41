package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yoockh/yoospeak-interview/config"
	"github.com/yoockh/yoospeak-interview/internal/api/handlers"
	"github.com/yoockh/yoospeak-interview/internal/api/middleware"
	"github.com/yoockh/yoospeak-interview/internal/api/routes"
	"github.com/yoockh/yoospeak-interview/internal/audio"
	"github.com/yoockh/yoospeak-interview/internal/cache"
	"github.com/yoockh/yoospeak-interview/internal/capture"
	"github.com/yoockh/yoospeak-interview/internal/events"
	"github.com/yoockh/yoospeak-interview/internal/interview"
	"github.com/yoockh/yoospeak-interview/internal/logger"
	"github.com/yoockh/yoospeak-interview/internal/playback"
	"github.com/yoockh/yoospeak-interview/internal/providers/llm"
	"github.com/yoockh/yoospeak-interview/internal/providers/stt"
	"github.com/yoockh/yoospeak-interview/internal/providers/tts"
	mongorepo "github.com/yoockh/yoospeak-interview/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoospeak-interview/internal/repositories/postgres"
	"github.com/yoockh/yoospeak-interview/internal/services"
	"github.com/yoockh/yoospeak-interview/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	settings, err := config.LoadSettings()
	if err != nil {
		log.WithError(err).Fatal("invalid settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(ctx, 20*time.Second)
	defer cancelInit()

	// Init MongoDB
	mongoClient, err := config.InitMongo(initCtx)
	if err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	mdb := config.MongoDatabase(mongoClient)
	if err := config.EnsureMongoIndexes(initCtx, mdb); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}
	log.Info("MongoDB connected")

	// Init PostgreSQL
	pg, err := config.InitPostgres()
	if err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.MigratePostgres(pg); err != nil {
		log.WithError(err).Fatal("PostgreSQL migrate error")
	}
	log.Info("PostgreSQL connected")

	// Redis is optional for a single local agent.
	var rdb *redis.Client
	if client, err := config.InitRedis(initCtx); err != nil {
		log.WithError(err).Warn("Redis unavailable, using in-process cache and events")
	} else {
		rdb = client
		defer func() { _ = rdb.Close() }()
		log.Info("Redis connected")
	}

	// Repositories
	interviewRepo := mongorepo.NewInterviewRepo(mdb)
	turnRepo := mongorepo.NewTurnRepo(mdb)
	resumeRepo := pgrepo.NewResumeRepo(pg)
	answerLogRepo := pgrepo.NewAnswerLogRepo(pg)

	// Providers
	var sttProvider stt.Provider
	switch settings.STTProvider {
	case "google":
		g, err := stt.NewGoogleSpeech(initCtx)
		if err != nil {
			log.WithError(err).Fatal("Google Speech init error")
		}
		sttProvider = g
	default:
		sttProvider = stt.NewHTTPService(settings.TranscriptionURL, settings.TranscriptionKey, settings.HTTPTimeout)
	}
	defer func() { _ = sttProvider.Close() }()

	ttsProvider := tts.NewHTTPService(settings.SynthesisURL, settings.SynthesisKey, settings.SynthesisVoice, settings.HTTPTimeout)

	gemini, err := llm.NewVertexGemini(initCtx, settings.VertexProjectID, settings.VertexLocation, settings.VertexModel)
	if err != nil {
		log.WithError(err).Fatal("Vertex AI init error")
	}
	defer func() { _ = gemini.Close() }()

	// Services
	var (
		speechCache cache.Cache
		bus         events.Bus
		journal     interview.Journal
	)
	journalSvc := services.NewJournalService(answerLogRepo)
	if rdb != nil {
		speechCache = cache.NewRedisCache(rdb, "yoospeak:")
		bus = events.NewRedisBus(rdb)
		journal = &workers.StreamJournal{Redis: rdb}

		pool := &workers.JournalWorkerPool{
			Redis:      rdb,
			Journal:    journalSvc,
			NumWorkers: 2,
			Logger:     log,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("journal worker error")
		}
	} else {
		speechCache = cache.NewMemoryCache()
		bus = events.NewHub()
		journal = journalSvc
	}

	transcription := services.NewTranscriptionService(sttProvider, settings.SpeechLanguage)
	synthesis := services.NewSynthesisService(ttsProvider, speechCache, settings.SynthesisCacheTTL, log)
	analysis := services.NewAnalysisService(gemini)
	store := services.NewInterviewStore(interviewRepo, turnRepo)
	resumes := services.NewResumeService(resumeRepo)

	// Devices
	capOpts := capture.DefaultOptions()
	capOpts.ChunkInterval = settings.CaptureChunkInterval
	capOpts.MaxDuration = settings.CaptureMaxDuration
	capOpts.MinBytes = settings.CaptureMinBytes
	capOpts.MaxBytes = settings.CaptureMaxBytes
	capOpts.LevelInterval = settings.LevelFrameInterval

	manager := interview.NewManager(interview.ManagerConfig{
		Device:      audio.Exclusive(audio.NewSoxDevice(settings.AudioInputCommand)),
		Transcriber: transcription,
		Capture:     capOpts,
		Synthesizer: synthesis,
		Output:      audio.NewExecOutput(settings.AudioOutputCommand),
		Playback:    playback.Options{},
		Session: interview.Deps{
			Store:         store,
			Analyzer:      analysis,
			Resumes:       resumes,
			Journal:       journal,
			Publisher:     bus,
			QuestionCount: settings.QuestionCount,
			TaskTimeout:   settings.TaskTimeout,
			Logger:        log,
		},
	})
	defer manager.Shutdown()

	// HTTP
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Auth: middleware.AuthConfig{
			Secret:   settings.JWTSecret,
			Issuer:   settings.JWTIssuer,
			Audience: settings.JWTAudience,
		},
		Interview: handlers.NewInterviewHandler(manager, journalSvc),
		WS:        handlers.NewWSHandler(manager, bus),
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", settings.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}
