package service

import (
	"time"

	"identity-service/internal/events"
	"identity-service/internal/hashing"
	"identity-service/internal/notify"
	"identity-service/internal/otp"
	"identity-service/internal/repository/postgres"
	"identity-service/internal/token"

	"go.uber.org/zap"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	accounts  postgres.AccountRepository
	hasher    *hashing.Hasher
	otpStore  otp.Store
	notifier  notify.Notifier
	issuer    *token.Issuer
	publisher *events.Publisher
	logger    *zap.Logger

	acceptedDomains []string
	otpTTL          time.Duration

	identityService *IdentityService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(
	accounts postgres.AccountRepository,
	hasher *hashing.Hasher,
	otpStore otp.Store,
	notifier notify.Notifier,
	issuer *token.Issuer,
	publisher *events.Publisher,
	acceptedDomains []string,
	otpTTL time.Duration,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		accounts:        accounts,
		hasher:          hasher,
		otpStore:        otpStore,
		notifier:        notifier,
		issuer:          issuer,
		publisher:       publisher,
		logger:          logger,
		acceptedDomains: acceptedDomains,
		otpTTL:          otpTTL,
	}
}

// IdentityService returns the identity service instance (singleton)
func (f *ServiceFactory) IdentityService() *IdentityService {
	if f.identityService == nil {
		f.identityService = NewIdentityService(
			f.accounts,
			f.hasher,
			f.otpStore,
			f.notifier,
			f.issuer,
			f.publisher,
			f.acceptedDomains,
			f.otpTTL,
			f.logger,
		)
	}
	return f.identityService
}
