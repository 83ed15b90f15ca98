package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/cleanly/booking-api/internal/repository"
)

// Repositories bundles every postgres repository over one pool.
type Repositories struct {
	Tx          repository.Transactor
	Bookings    repository.BookingRepository
	Jobs        repository.JobRepository
	Idempotency repository.IdempotencyRepository
	Profiles    repository.ProviderProfileRepository
	Companies   repository.CompanyRepository
	Services    repository.ServiceRepository
	Addresses   repository.AddressRepository
	Outbox      repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Tx:          NewTransactor(base),
		Bookings:    NewBookingRepository(base),
		Jobs:        NewJobRepository(base),
		Idempotency: NewIdempotencyRepository(base),
		Profiles:    NewProviderProfileRepository(base),
		Companies:   NewCompanyRepository(base),
		Services:    NewServiceRepository(base),
		Addresses:   NewAddressRepository(base),
		Outbox:      NewOutboxRepository(base),
	}
}
