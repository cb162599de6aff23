package db

import "fmt"

// Provider hands out the database instance services should use. Keeping the
// indirection lets tests inject a fake without a running MySQL.
type Provider interface {
	Current() Database
}

// StaticProvider wraps one fixed database instance.
type StaticProvider struct {
	db Database
}

// NewStaticProvider creates a provider around database.
func NewStaticProvider(database Database) *StaticProvider {
	return &StaticProvider{db: database}
}

// Current returns the wrapped database.
func (p *StaticProvider) Current() Database {
	if p == nil {
		return nil
	}
	return p.db
}

// CurrentDatabase resolves the active database from provider, rejecting nil
// at either level.
func CurrentDatabase(provider Provider) (Database, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is nil")
	}
	database := provider.Current()
	if database == nil {
		return nil, fmt.Errorf("no database configured")
	}
	return database, nil
}
