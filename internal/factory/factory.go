package factory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"identity-service/internal/client"
	"identity-service/internal/config"
	"identity-service/internal/events"
	"identity-service/internal/handler"
	"identity-service/internal/hashing"
	"identity-service/internal/notify"
	"identity-service/internal/otp"
	"identity-service/internal/repository/postgres"
	redisrepo "identity-service/internal/repository/redis"
	"identity-service/internal/service"
	"identity-service/internal/token"
	"identity-service/internal/util"

	"golang.org/x/sync/errgroup"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config *config.Config

	// Clients
	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	// Components
	accountStore *postgres.Store
	hasher       *hashing.Hasher
	otpStore     otp.Store
	memoryOTP    *otp.MemoryStore
	notifier     notify.Notifier
	issuer       *token.Issuer
	publisher    *events.Publisher

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("otp_backend", cfg.OTP.Backend),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	return f, nil
}

func (f *Factory) initializeClients() error {
	// Postgres
	store, err := postgres.Open(&f.config.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.accountStore = store

	// Redis, only when the durable OTP backend is selected
	if f.config.OTP.Backend == "redis" {
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
	}

	// Kafka is optional: without it OTP delivery falls back to log
	// output and audit events are dropped
	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	return nil
}

func (f *Factory) initializeComponents() error {
	f.hasher = hashing.NewHasher(f.config.Policy.BcryptCost)

	secret := f.config.Token.Secret
	if secret == "" {
		if f.config.IsProduction() {
			return fmt.Errorf("TOKEN_SECRET must be set in production")
		}
		secret = randomSecret()
		util.Warn("TOKEN_SECRET not set - generated an ephemeral secret; tokens will not survive a restart")
	}

	issuer, err := token.NewIssuer(secret, f.config.Token.Issuer,
		f.config.Token.AccessTTL, f.config.Token.RefreshTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	f.issuer = issuer

	switch f.config.OTP.Backend {
	case "redis":
		f.otpStore = redisrepo.NewOTPStore(f.redisClient, f.config.OTP.TTL, f.config.OTP.Digits)
	default:
		memStore := otp.NewMemoryStore(f.config.OTP.TTL, f.config.OTP.Digits)
		memStore.StartJanitor(f.config.OTP.TTL)
		f.memoryOTP = memStore
		f.otpStore = memStore
	}

	if f.kafkaProducer != nil {
		f.notifier = notify.NewKafkaNotifier(f.kafkaProducer, f.config.Kafka.EmailTopic)
		f.publisher = events.NewPublisher(f.kafkaProducer, f.config.Kafka.EventTopic)
	} else {
		if f.config.IsProduction() {
			return fmt.Errorf("no notifier available: Kafka is required in production")
		}
		f.notifier = notify.NewLogNotifier(util.Get())
	}

	return nil
}

// ServiceFactory returns the service factory (singleton)
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.accountStore,
			f.hasher,
			f.otpStore,
			f.notifier,
			f.issuer,
			f.publisher,
			f.config.Policy.AcceptedEmailDomains,
			f.config.OTP.TTL,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// Router assembles the HTTP surface.
func (f *Factory) Router() *handler.IdentityHandler {
	return handler.NewIdentityHandler(f.ServiceFactory().IdentityService(), util.Get())
}

// HealthCheck probes every wired collaborator concurrently.
func (f *Factory) HealthCheck(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := f.accountStore.HealthCheck(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	})

	if f.redisClient != nil {
		g.Go(func() error {
			if err := f.redisClient.HealthCheck(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
	}

	if f.kafkaProducer != nil {
		g.Go(func() error {
			if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
				return fmt.Errorf("kafka: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Issuer() *token.Issuer {
	return f.issuer
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.memoryOTP != nil {
			f.memoryOTP.Close()
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		if f.accountStore != nil {
			if err := f.accountStore.Close(); err != nil {
				util.Error("Failed to close Postgres store", util.ErrorField(err))
			} else {
				util.Info("Postgres store closed")
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		util.Fatal("Failed to generate token secret", util.ErrorField(err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
