package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"creativemind-api/internal/chats"
	"creativemind-api/internal/ledger"
	"creativemind-api/internal/middleware"
	"creativemind-api/internal/payments"
	"creativemind-api/internal/providers"
	"creativemind-api/internal/routers"
	"creativemind-api/internal/shared"
	"creativemind-api/internal/tasks"
	"creativemind-api/internal/users"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Flags / ENV Variables
	writeDSN := flag.String("dsn", "", "Write mysql DSN")
	readDSN := flag.String("read-dsn", "", "Read replica mysql DSN")
	metricsAPIKey := flag.String("metrics-api-key", "", "Metrics api key")
	redisAddr := flag.String("redis-addr", "", "Redis host:port")
	debug := flag.Bool("debug", false, "Debug enabled")
	jwtSecret := flag.String("jwt-secret", "", "JWT signing secret")
	stagingDir := flag.String("staging-dir", os.TempDir(), "Scratch dir for staged uploads")

	imageURL := flag.String("image-url", "https://api.together.xyz/v1/images/generations", "Image generation endpoint")
	imageAPIKey := flag.String("image-api-key", "", "Image generation api key")
	speechURL := flag.String("speech-url", "", "Speech synthesis endpoint")
	speechAPIKey := flag.String("speech-api-key", "", "Speech synthesis api key")
	removeBGURL := flag.String("removebg-url", "https://api.remove.bg/v1.0/removebg", "Background removal endpoint")
	removeBGAPIKey := flag.String("removebg-api-key", "", "Background removal api key")
	chatURL := flag.String("chat-url", "https://openrouter.ai/api/v1/chat/completions", "Chat completion endpoint")
	chatAPIKey := flag.String("chat-api-key", "", "Chat completion api key")

	paymentsURL := flag.String("payments-url", "https://api.razorpay.com/v1", "Payment gateway base URL")
	paymentsKeyID := flag.String("payments-key-id", "", "Payment gateway key id")
	paymentsKeySecret := flag.String("payments-key-secret", "", "Payment gateway key secret")
	paymentsCurrency := flag.String("payments-currency", "USD", "Checkout currency")

	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()

	// Write DB init
	writeDB, err := sql.Open("mysql", *writeDSN)
	if err != nil {
		panic(fmt.Sprintf("failed initializing sqlClient: %s", err))
	}
	err = writeDB.Ping()
	if err != nil {
		panic(fmt.Sprintf("failed ping to sql db: %s", err))
	}

	// Read db init
	readDB, err := sql.Open("mysql", *readDSN)
	if err != nil {
		panic(fmt.Sprintf("failed initializing readSqlClient: %s", err))
	}
	err = readDB.Ping()
	if err != nil {
		panic(fmt.Sprintf("failed to ping read replica sql db: %s", err))
	}

	// Load Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     *redisAddr,
		Password: "",
		DB:       0,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		panic(fmt.Sprintf("failed ping to redis db: %s", err))
	}

	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if writeDB != nil {
			_ = writeDB.Close()
		}
		if readDB != nil {
			_ = readDB.Close()
		}
	}()

	var logger *zap.Logger
	if !*debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if *debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()

	e := echo.New()
	e.GET(("/ping"), func(c echo.Context) error {
		return c.String(200, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey, err := shared.ExtractAPIKey(c)
			if err != nil {
				return c.String(401, "Missing or invalid API key")
			}

			if apiKey != *metricsAPIKey {
				return c.String(401, "Unauthorized API key")
			}
			return next(c)
		}
	})
	base := e.Group("")
	base.Use(emw.CORS())
	base.Use(middleware.NewRecoverMiddleware(log))
	base.Use(middleware.NewTrackMiddleware(log))

	identity := users.NewService(writeDB, readDB, *jwtSecret, log)
	ledgerStore := ledger.NewStore(writeDB, readDB, log)
	chatStore := chats.NewStore(writeDB, readDB, log)
	userManager := middleware.NewUserManager(redisClient, readDB, identity, log)

	adapters := []providers.Adapter{
		providers.NewImageAdapter(providers.Config{
			URL:     *imageURL,
			APIKey:  *imageAPIKey,
			Timeout: shared.ImageGenerationTimeout,
		}, log),
		providers.NewSpeechAdapter(providers.Config{
			URL:     *speechURL,
			APIKey:  *speechAPIKey,
			Timeout: shared.SpeechSynthesisTimeout,
		}, log),
		providers.NewRemoveBGAdapter(providers.Config{
			URL:     *removeBGURL,
			APIKey:  *removeBGAPIKey,
			Timeout: shared.BackgroundRemovalTimeout,
		}, *stagingDir, log),
		providers.NewChatAdapter(providers.Config{
			URL:     *chatURL,
			APIKey:  *chatAPIKey,
			Timeout: shared.ChatCompletionTimeout,
		}, log),
	}
	executor := tasks.NewExecutor(writeDB, ledgerStore, chatStore, adapters, log)

	gateway := payments.NewHTTPGateway(*paymentsURL, *paymentsKeyID, *paymentsKeySecret, log)
	paymentSvc := payments.NewService(writeDB, ledgerStore, gateway, *paymentsCurrency, log)

	// Register routes
	routers.RegisterUserRoutes(base, identity, ledgerStore, paymentSvc, *stagingDir, userManager, log)
	routers.RegisterTaskRoutes(base, executor, chatStore, ledgerStore, userManager)

	go func() {
		if err := e.Start(":80"); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Wait for interrupt signal to gracefully shut down the server with a timeout of 10 seconds.
	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), shared.DefaultShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
