package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository"
)

type companyRepository struct {
	BaseRepository
}

func NewCompanyRepository(base BaseRepository) repository.CompanyRepository {
	return &companyRepository{base}
}

func (r *companyRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*model.Company, error) {
	var c model.Company
	query := `SELECT id, owner_id, name, created_at, updated_at FROM companies WHERE owner_id = $1`
	if err := sqlxGet(ctx, r.conn(ctx), &c, query, ownerID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *companyRepository) IsEmployee(ctx context.Context, companyID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM company_employees WHERE company_id = $1 AND user_id = $2)`
	if err := sqlxGet(ctx, r.conn(ctx), &exists, query, companyID, userID); err != nil {
		return false, err
	}
	return exists, nil
}

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) ListActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Service, error) {
	services := []*model.Service{}
	if len(ids) == 0 {
		return services, nil
	}

	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}
	query := `
		SELECT id, name, description, base_price_cents, active, created_at, updated_at
		FROM services
		WHERE id = ANY($1::uuid[]) AND active
	`
	if err := sqlxSelect(ctx, r.conn(ctx), &services, query, pq.Array(strIDs)); err != nil {
		return nil, err
	}
	return services, nil
}

type addressRepository struct {
	BaseRepository
}

func NewAddressRepository(base BaseRepository) repository.AddressRepository {
	return &addressRepository{base}
}

func (r *addressRepository) GetOwned(ctx context.Context, id, userID uuid.UUID) (*model.Address, error) {
	var a model.Address
	query := `
		SELECT id, user_id, line1, line2, city, postal_code, country, created_at, updated_at
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`
	if err := sqlxGet(ctx, r.conn(ctx), &a, query, id, userID); err != nil {
		return nil, err
	}
	return &a, nil
}
