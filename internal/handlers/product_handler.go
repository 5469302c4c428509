package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/festpay/backend/internal/services"
)

type ProductHandler struct {
	stock *services.StockService
}

func NewProductHandler(stock *services.StockService) *ProductHandler {
	return &ProductHandler{stock: stock}
}

// GetProduct returns a product with its current stock level
// @Summary Get product by ID
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} services.ErrorResponse
// @Router /products/{productId} [get]
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	product, err := h.stock.Get(r.Context(), productID)
	if err != nil {
		services.SendEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(product)
}
