// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

// Package broker assembles the message broker peer from its parts: a
// storage backend, the optional pooling router, and the HTTP API.
package broker

import (
	"time"

	"github.com/courier-mq/courier/broker/validate"
)

// PoolingConfig tunes the catalogue router. When disabled every queue lives
// on the single configured store.
type PoolingConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	CacheCapacity   int           `json:"cacheCapacity" yaml:"cacheCapacity"`
	CacheExpiration time.Duration `json:"cacheExpiration" yaml:"cacheExpiration"`
}

// Config is the broker peer configuration.
type Config struct {
	// Address is the HTTP listen address.
	Address string `json:"address" yaml:"address"`

	// Store is a store URL, for example bolt:///var/lib/courier/data.db.
	// With pooling enabled it holds the control plane: pools, catalogue,
	// and queue metadata.
	Store string `json:"store" yaml:"store"`

	Pooling PoolingConfig   `json:"pooling" yaml:"pooling"`
	Limits  validate.Limits `json:"limits" yaml:"limits"`
}

// DefaultConfig returns a runnable single-store configuration.
func DefaultConfig() Config {
	return Config{
		Address: ":8888",
		Store:   "bolt:///var/lib/courier/courier.db",
		Limits:  validate.DefaultLimits(),
	}
}
