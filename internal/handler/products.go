package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"settlepos/internal/apierror"
	"settlepos/internal/dto"
	"settlepos/internal/model"
	"settlepos/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const productCacheTTL = 5 * time.Minute

// ProductsHandler serves the SKU lookup terminals use before addItem. Prices
// shown here are informational; addItem always reprices server side.
type ProductsHandler struct {
	repo repository.ProductRepository
	rdb  *redis.Client
}

func NewProductsHandler(repo repository.ProductRepository, rdb *redis.Client) *ProductsHandler {
	return &ProductsHandler{repo: repo, rdb: rdb}
}

// GetBySKU godoc
// @Summary Look up a product by SKU
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param sku path string true "SKU"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/sku/{sku} [get]
func (h *ProductsHandler) GetBySKU(c *gin.Context) {
	sku := c.Param("sku")
	ctx := c.Request.Context()
	cacheKey := "product:sku:" + sku

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal(cached, &resp) == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	p, err := h.repo.FindBySKU(ctx, sku)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, apierror.ErrProductNotFound.With("sku %q", sku))
		return
	}
	if err != nil {
		respondError(c, apierror.ErrDatabase.Wrap(err))
		return
	}
	resp := toProductResponse(p)

	// Best effort: a cache failure only costs the next lookup a query.
	if h.rdb != nil {
		if b, err := json.Marshal(resp); err == nil {
			if err := h.rdb.Set(context.WithoutCancel(ctx), cacheKey, b, productCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Str("sku", sku).Msg("product cache write failed")
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	resp := dto.ProductResponse{
		ID:      p.ID.String(),
		SKU:     p.SKU,
		Name:    p.Name,
		Price:   p.Price,
		TaxRate: p.TaxRate,
		Options: make([]dto.OptionResponse, 0, len(p.Options)),
		Active:  p.Active,
	}
	if p.CategoryID != nil {
		s := p.CategoryID.String()
		resp.CategoryID = &s
	}
	for _, o := range p.Options {
		resp.Options = append(resp.Options, dto.OptionResponse{ID: o.ID, Name: o.Name, PriceDelta: o.PriceDelta})
	}
	return resp
}
