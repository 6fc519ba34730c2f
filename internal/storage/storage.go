package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for regions, price snapshots, and the
// supporting admin tables (settings, users, tokens, policies, email).
type Storage interface {
	// Regions
	ListRegions(ctx context.Context) ([]Region, error)
	GetRegion(ctx context.Context, key string) (*Region, error)
	UpsertRegion(ctx context.Context, r Region) error

	// Price snapshots. GetPriceSnapshot returns the most recent snapshot
	// for a region, or (nil, nil) when none exists.
	GetPriceSnapshot(ctx context.Context, region string) (*PriceSnapshot, error)
	SavePriceSnapshot(ctx context.Context, snap PriceSnapshot) error

	// Settings. GetSetting returns "" for a missing key.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email notification config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, cfg EmailConfig) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
