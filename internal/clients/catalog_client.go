package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
)

// ErrProductNotFound is returned when the catalog has no product for a SKU.
var ErrProductNotFound = errors.New("product not found in catalog")

// CatalogClient reads product cost data from service-catalog
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCatalogClient creates a new CatalogClient
func NewCatalogClient(baseURL string, logger *zap.Logger) *CatalogClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Product is the cost view of a catalog product. SKU matches the seller's
// supplier article on the marketplace.
type Product struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	SKU                 string            `json:"sku"`
	CostPrice           float64           `json:"cost_price"`
	DeliveryToWarehouse float64           `json:"delivery_to_warehouse"`
	BasePrice           float64           `json:"base_price"`
	Dimensions          *ProductDimension `json:"dimensions"`
	Variants            []ProductVariant  `json:"variants"`
}

// ProductDimension represents product dimensions for shipping
type ProductDimension struct {
	Length float64 `json:"length"` // cm
	Width  float64 `json:"width"`  // cm
	Height float64 `json:"height"` // cm
}

// ProductVariant carries its own SKU and, optionally, its own cost.
type ProductVariant struct {
	SKU       string  `json:"sku"`
	CostPrice float64 `json:"cost_price"`
}

// envelope is the {success, message, data} format of the public catalog endpoints.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func getJSON[T any](ctx context.Context, c *CatalogClient, endpoint string) (T, int, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return zero, resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return zero, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Data, resp.StatusCode, nil
}

// GetProduct fetches a product by SKU.
func (c *CatalogClient) GetProduct(ctx context.Context, sku string) (*Product, error) {
	endpoint := fmt.Sprintf("%s/api/v1/catalog/products/sku/%s", c.baseURL, url.PathEscape(sku))

	product, status, err := getJSON[Product](ctx, c, endpoint)
	if status == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetAllProducts fetches all active products.
func (c *CatalogClient) GetAllProducts(ctx context.Context) ([]Product, error) {
	endpoint := fmt.Sprintf("%s/api/v1/catalog/products?status=active&page_size=1000", c.baseURL)

	products, _, err := getJSON[[]Product](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched products from catalog", zap.Int("count", len(products)))
	return products, nil
}

// UnitCosts maps every known SKU to its cost of goods. Variants without their
// own cost inherit the product's.
func (c *CatalogClient) UnitCosts(ctx context.Context) (map[analytics.ProductKey]float64, error) {
	products, err := c.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}

	costs := make(map[analytics.ProductKey]float64, len(products))
	for _, p := range products {
		if p.SKU != "" && p.CostPrice > 0 {
			costs[analytics.ProductKey(p.SKU)] = p.CostPrice
		}
		for _, v := range p.Variants {
			if v.SKU == "" {
				continue
			}
			cost := v.CostPrice
			if cost <= 0 {
				cost = p.CostPrice
			}
			if cost > 0 {
				costs[analytics.ProductKey(v.SKU)] = cost
			}
		}
	}
	return costs, nil
}
