package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every checkout store over one bun database.
type RepositoryFactory struct {
	db *bun.DB

	orderStore             *OrderStore
	orderEventStore        *OrderEventStore
	productStore           *ProductStore
	subscriptionStore      *SubscriptionStore
	deliveryStore          *DeliveryStore
	gatewayCredentialStore *GatewayCredentialStore
	sessionStore           *SessionStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.Build(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.Build(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// Build resolves a *bun.DB from persistenceClient (a *bun.DB or anything
// exposing DB() *bun.DB) and creates the stores once.
func (f *RepositoryFactory) Build(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.orderStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) OrderStore() *OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) EventLedger() *OrderEventStore {
	if f == nil {
		return nil
	}
	return f.orderEventStore
}

func (f *RepositoryFactory) ProductStore() *ProductStore {
	if f == nil {
		return nil
	}
	return f.productStore
}

func (f *RepositoryFactory) SubscriptionStore() *SubscriptionStore {
	if f == nil {
		return nil
	}
	return f.subscriptionStore
}

// CachedSubscriptionStore wraps the subscription store with cacheService.
func (f *RepositoryFactory) CachedSubscriptionStore(cacheService repositorycache.CacheService) (*CachedSubscriptionStore, error) {
	if f == nil || f.subscriptionStore == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is not built")
	}
	return NewCachedSubscriptionStore(f.subscriptionStore, cacheService)
}

func (f *RepositoryFactory) DeliveryStore() *DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) GatewayCredentialStore() *GatewayCredentialStore {
	if f == nil {
		return nil
	}
	return f.gatewayCredentialStore
}

func (f *RepositoryFactory) SessionStore() *SessionStore {
	if f == nil {
		return nil
	}
	return f.sessionStore
}

func (f *RepositoryFactory) initStores() error {
	var err error
	if f.orderStore, err = NewOrderStore(f.db); err != nil {
		return err
	}
	if f.orderEventStore, err = NewOrderEventStore(f.db); err != nil {
		return err
	}
	if f.productStore, err = NewProductStore(f.db); err != nil {
		return err
	}
	if f.subscriptionStore, err = NewSubscriptionStore(f.db); err != nil {
		return err
	}
	if f.deliveryStore, err = NewDeliveryStore(f.db); err != nil {
		return err
	}
	if f.gatewayCredentialStore, err = NewGatewayCredentialStore(f.db); err != nil {
		return err
	}
	if f.sessionStore, err = NewSessionStore(f.db); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
