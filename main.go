package main

import (
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/subosito/gotenv"
	"golang.org/x/time/rate"

	"github.com/voxloop/voxloop/adapters/hasher"
	httpadapter "github.com/voxloop/voxloop/adapters/http"
	"github.com/voxloop/voxloop/adapters/llm"
	"github.com/voxloop/voxloop/adapters/message_broker"
	"github.com/voxloop/voxloop/adapters/player"
	"github.com/voxloop/voxloop/adapters/recorder"
	"github.com/voxloop/voxloop/adapters/stt"
	"github.com/voxloop/voxloop/adapters/tts"
	"github.com/voxloop/voxloop/adapters/websocket"
	"github.com/voxloop/voxloop/config"
	"github.com/voxloop/voxloop/domain"
	"github.com/voxloop/voxloop/metrics"
	"github.com/voxloop/voxloop/usecase"
)

func main() {
	gotenv.Load()

	cfg, err := config.Load(os.Getenv("VOXLOOP_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	completer := buildCompleter(cfg)
	transcriber := buildTranscriber(cfg)
	synthesizer := buildSynthesizer(cfg)

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	// The hub is created by the WebSocket server below; sessions are only
	// created per request, well after the assignment.
	var hub *websocket.Hub
	sessions := usecase.NewSessionManager(func(userID int, deviceID string) *usecase.Session {
		return usecase.NewSession(cfg.Assistant.SystemPrompt, completer, usecase.PipelineDeps{
			Recorder:    recorder.NewHubRecorder(hub, deviceID),
			Transcriber: transcriber,
			Synthesizer: synthesizer,
			Player:      player.NewWSPlayer(hub, deviceID),
			Voice:       cfg.Assistant.Voice,
			ArtifactDir: cfg.Assistant.ArtifactDir,
			Metrics:     m,
		})
	})

	server := websocket.NewServer(sessions, broker, m)
	hub = server.GetHub()
	go server.RunWebsocketHub()

	handler := httpadapter.NewTurnHandler(sessions, broker, hasher.New(), cfg.Auth, cfg.Assistant.RecordSeconds)

	e := echo.New()

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RatePerMinute))))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // In production, specify exact origins
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// WebSocket endpoint for devices (JWT required)
	wsGroup := e.Group("/ws")
	wsGroup.Use(handler.JWTMiddleware)
	wsGroup.GET("", server.Handler)

	api := e.Group("/api/v1")

	// Public endpoints
	api.GET("/health", handler.HealthCheck)
	api.POST("/auth/token", handler.GenerateJWT)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Turn endpoints (JWT auth required)
	turns := api.Group("")
	turns.Use(handler.JWTMiddleware)
	turns.Use(handler.RateLimitMiddleware)

	turns.POST("/chat", handler.Chat)
	turns.GET("/chat/history", handler.History)
	turns.POST("/turn", handler.RunTurn)
	turns.POST("/audio/turn", handler.VoiceTurn)
	turns.POST("/transcribe", handler.Transcribe)
	turns.POST("/speak", handler.Speak)

	log.Printf("Starting server on %s", cfg.Server.Address)
	log.Println("Available endpoints:")
	log.Println("  GET  /api/v1/health        - Health check")
	log.Println("  POST /api/v1/auth/token    - Get JWT token")
	log.Println("  POST /api/v1/chat          - Text turn (JWT required)")
	log.Println("  GET  /api/v1/chat/history  - Conversation snapshot (JWT required)")
	log.Println("  POST /api/v1/turn          - Full voice turn from device mic (JWT required)")
	log.Println("  POST /api/v1/audio/turn    - Voice turn from uploaded clip (JWT required)")
	log.Println("  POST /api/v1/transcribe    - Capture and transcribe only (JWT required)")
	log.Println("  POST /api/v1/speak         - Synthesize and play text (JWT required)")
	log.Println("  GET  /ws                   - Device WebSocket (JWT required)")
	log.Println("  GET  /metrics              - Prometheus metrics")
	log.Fatal(e.Start(cfg.Server.Address))
}

func buildCompleter(cfg *config.Config) domain.Completer {
	switch cfg.Providers.LLM {
	case "gemini":
		return llm.NewGeminiClient(cfg.Providers.GeminiModel)
	default:
		return llm.NewOpenAIClient(cfg.Providers.OpenAIAPIKey, cfg.Providers.OpenAIModel)
	}
}

func buildTranscriber(cfg *config.Config) domain.Transcriber {
	switch cfg.Providers.STT {
	case "google":
		return stt.NewGoogleSpeech(cfg.Providers.GoogleLanguage)
	default:
		return stt.NewOpenAIWhisper(cfg.Providers.OpenAIAPIKey)
	}
}

func buildSynthesizer(cfg *config.Config) domain.Synthesizer {
	switch cfg.Providers.TTS {
	case "google":
		return tts.NewGoogleTTS(cfg.Providers.GoogleLanguage)
	default:
		return tts.NewOpenAISpeech(cfg.Providers.OpenAIAPIKey)
	}
}
