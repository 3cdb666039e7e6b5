// cmd/subscription-service/clients.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/freshbasket/subscriptions/internal/cache"
	"github.com/freshbasket/subscriptions/internal/httpclient"
)

// Product is the catalog's view of a product.
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   int64  `json:"price"` // in paise
	InStock bool   `json:"in_stock"`
}

// ProductSource supplies price snapshots for subscription items.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

// CatalogClient fetches products from the catalog service with a Redis
// cache in front. The cache is optional; a nil cache client means every
// lookup goes to the catalog.
type CatalogClient struct {
	client *httpclient.Client
	cache  *cache.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewCatalogClient(baseURL string, cacheClient *cache.Client, ttl time.Duration, logger *log.Logger) *CatalogClient {
	return &CatalogClient{
		client: httpclient.NewClient(baseURL, 10*time.Second),
		cache:  cacheClient,
		ttl:    ttl,
		logger: logger,
	}
}

// GetProduct returns a product, serving from cache when possible.
func (c *CatalogClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	key := "product:" + id

	if c.cache != nil {
		var cached Product
		err := c.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if err != cache.ErrCacheMiss {
			c.logger.Printf("Cache error for %s: %v", key, err)
		}
	}

	var product Product
	if err := c.client.Get(ctx, "/products/"+id, &product); err != nil {
		return nil, fmt.Errorf("failed to fetch product %s: %w", id, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, product, c.ttl); err != nil {
			c.logger.Printf("Failed to cache %s: %v", key, err)
		}
	}

	return &product, nil
}
