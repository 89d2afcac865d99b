package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"polar-billing-bridge/internal/client"
	"polar-billing-bridge/internal/model"
	"polar-billing-bridge/internal/normalize"
	"polar-billing-bridge/internal/polar"
	"polar-billing-bridge/internal/reconcile"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
	"gorm.io/gorm"
)

const (
	productPageSize   = 100
	syncConcurrency   = 4
	defaultSeedAmount = "fixed"
)

// SeedFile is the catalog definition read by the seed command.
type SeedFile struct {
	ArchiveMissing bool          `yaml:"archiveMissing"`
	Products       []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Name              string      `yaml:"name"`
	Description       string      `yaml:"description"`
	RecurringInterval string      `yaml:"recurringInterval"`
	Prices            []SeedPrice `yaml:"prices"`
}

// SeedPrice amounts are in major currency units, e.g. "12.50".
type SeedPrice struct {
	AmountType string `yaml:"amountType"`
	Currency   string `yaml:"currency"`
	Amount     string `yaml:"amount"`
}

// ParseSeedFile reads and checks a YAML catalog definition.
func ParseSeedFile(r io.Reader) (*SeedFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.UnmarshalStrict(raw, &seed); err != nil {
		return nil, fmt.Errorf("%w: parse seed file: %v", ErrInvalidInput, err)
	}

	seen := make(map[string]bool, len(seed.Products))
	for i, p := range seed.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product %d has no name", ErrInvalidInput, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate product %q", ErrInvalidInput, name)
		}
		seen[name] = true
		if len(p.Prices) == 0 {
			return nil, fmt.Errorf("%w: product %q has no prices", ErrInvalidInput, name)
		}
		for _, price := range p.Prices {
			if _, err := price.toCreate(); err != nil {
				return nil, fmt.Errorf("product %q: %w", name, err)
			}
		}
	}
	return &seed, nil
}

func (p SeedPrice) toCreate() (client.ProductPriceCreate, error) {
	amountType := p.AmountType
	if amountType == "" {
		amountType = defaultSeedAmount
	}

	switch model.AmountType(amountType) {
	case model.AmountFree:
		return client.ProductPriceCreate{AmountType: amountType}, nil
	case model.AmountFixed:
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return client.ProductPriceCreate{}, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, p.Amount, err)
		}
		minor := amount.Shift(2)
		if !minor.IsInteger() || minor.IsNegative() {
			return client.ProductPriceCreate{}, fmt.Errorf("%w: amount %q is not a whole number of cents", ErrInvalidInput, p.Amount)
		}
		if p.Currency == "" {
			return client.ProductPriceCreate{}, fmt.Errorf("%w: fixed price needs a currency", ErrInvalidInput)
		}
		cents := minor.IntPart()
		return client.ProductPriceCreate{
			AmountType:    amountType,
			PriceCurrency: strings.ToLower(p.Currency),
			PriceAmount:   &cents,
		}, nil
	default:
		return client.ProductPriceCreate{}, fmt.Errorf("%w: seeding %q prices is not supported", ErrInvalidInput, amountType)
	}
}

// SeedResult summarizes one Seed run.
type SeedResult struct {
	Created  []string
	Archived []string
	Synced   int
}

type CatalogService interface {
	// SyncProducts mirrors every upstream product, archived ones included,
	// and returns how many were reconciled.
	SyncProducts(ctx context.Context) (int, error)
	// Seed creates the seed file's products that do not exist upstream by
	// name, optionally archives the rest, then syncs.
	Seed(ctx context.Context, seed *SeedFile) (*SeedResult, error)
}

type catalogServiceImpl struct {
	polarClient client.PolarClient
	products    *reconcile.Reconciler[model.Product, *model.Product]
}

func NewCatalogService(db *gorm.DB, polarClient client.PolarClient) CatalogService {
	return &catalogServiceImpl{
		polarClient: polarClient,
		products:    reconcile.New[model.Product](db),
	}
}

func (s *catalogServiceImpl) listUpstream(ctx context.Context, includeArchived bool) ([]polar.Product, error) {
	var all []polar.Product
	for page := 1; ; page++ {
		resp, err := s.polarClient.ListProducts(ctx, page, productPageSize, includeArchived)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Items...)
		if len(resp.Items) == 0 || page >= resp.Pagination.MaxPage {
			return all, nil
		}
	}
}

func (s *catalogServiceImpl) SyncProducts(ctx context.Context) (int, error) {
	upstream, err := s.listUpstream(ctx, true)
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, in := range upstream {
		g.Go(func() error {
			product, err := normalize.Product(in)
			if err != nil {
				return err
			}
			res, err := s.products.Upsert(ctx, product)
			if err != nil {
				return fmt.Errorf("reconcile product %s: %w", in.ID, err)
			}
			log.Debug().Str("product_id", in.ID).Str("outcome", string(res.Outcome)).Msg("product synced")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	log.Info().Int("count", len(upstream)).Msg("products synced")
	return len(upstream), nil
}

func (s *catalogServiceImpl) Seed(ctx context.Context, seed *SeedFile) (*SeedResult, error) {
	existing, err := s.listUpstream(ctx, false)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]polar.Product, len(existing))
	for _, p := range existing {
		byName[p.Name] = p
	}

	result := &SeedResult{}
	wanted := make(map[string]bool, len(seed.Products))
	for _, sp := range seed.Products {
		name := strings.TrimSpace(sp.Name)
		wanted[name] = true
		if _, ok := byName[name]; ok {
			continue
		}

		req, err := sp.toCreate(name)
		if err != nil {
			return nil, err
		}
		created, err := s.polarClient.CreateProduct(ctx, req)
		if err != nil {
			return nil, err
		}
		log.Info().Str("product_id", created.ID).Str("name", name).Msg("product created")
		result.Created = append(result.Created, created.ID)
	}

	if seed.ArchiveMissing {
		for _, p := range existing {
			if wanted[p.Name] {
				continue
			}
			if _, err := s.polarClient.ArchiveProduct(ctx, p.ID); err != nil {
				return nil, err
			}
			log.Info().Str("product_id", p.ID).Str("name", p.Name).Msg("product archived")
			result.Archived = append(result.Archived, p.ID)
		}
	}

	result.Synced, err = s.SyncProducts(ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (sp SeedProduct) toCreate(name string) (*client.ProductCreate, error) {
	req := &client.ProductCreate{Name: name}
	if sp.Description != "" {
		req.Description = &sp.Description
	}
	if sp.RecurringInterval != "" {
		req.RecurringInterval = &sp.RecurringInterval
	}
	for _, p := range sp.Prices {
		price, err := p.toCreate()
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", name, err)
		}
		req.Prices = append(req.Prices, price)
	}
	return req, nil
}
