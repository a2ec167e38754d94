package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecomkit/storefront/internal/sessionkit"
)

type cartMutationRequest struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// MountCartRoutes registers the cart endpoints under /api/cart. Every endpoint
// requires a valid access token; the cart is keyed by the token's identity.
func MountCartRoutes(router gin.IRouter, configuration sessionkit.ServerConfig, codec *sessionkit.TokenCodec, carts CartStore, logger *zap.Logger) {
	if carts == nil {
		panic("cart routes require a cart store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	group := router.Group("/api/cart")
	group.Use(sessionkit.RequireAccess(configuration, codec))

	group.GET("", func(contextGin *gin.Context) {
		userID, _ := sessionkit.IdentityFromContext(contextGin)
		respondWithCart(contextGin, logger, carts, userID)
	})

	group.POST("/add", func(contextGin *gin.Context) {
		userID, _ := sessionkit.IdentityFromContext(contextGin)
		var request cartMutationRequest
		if bindErr := contextGin.ShouldBindJSON(&request); bindErr != nil {
			contextGin.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if request.ProductID == "" {
			contextGin.JSON(http.StatusBadRequest, gin.H{"error": "missing_product_id"})
			return
		}
		addErr := carts.Add(contextGin.Request.Context(), userID, CartItem{
			ProductID: request.ProductID,
			Title:     request.Title,
			Price:     request.Price,
			Quantity:  request.Quantity,
		})
		if addErr != nil {
			logger.Error("cart add failed",
				zap.String("code", "cart.add.store_error"),
				zap.Error(addErr))
			contextGin.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
			return
		}
		respondWithCart(contextGin, logger, carts, userID)
	})

	group.POST("/remove", func(contextGin *gin.Context) {
		userID, _ := sessionkit.IdentityFromContext(contextGin)
		var request cartMutationRequest
		if bindErr := contextGin.ShouldBindJSON(&request); bindErr != nil {
			// An empty body clears the whole cart.
			request = cartMutationRequest{}
		}
		if removeErr := carts.Remove(contextGin.Request.Context(), userID, request.ProductID); removeErr != nil {
			logger.Error("cart remove failed",
				zap.String("code", "cart.remove.store_error"),
				zap.Error(removeErr))
			contextGin.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
			return
		}
		respondWithCart(contextGin, logger, carts, userID)
	})

	group.POST("/update-quantity", func(contextGin *gin.Context) {
		userID, _ := sessionkit.IdentityFromContext(contextGin)
		var request cartMutationRequest
		if bindErr := contextGin.ShouldBindJSON(&request); bindErr != nil {
			contextGin.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if request.ProductID == "" {
			contextGin.JSON(http.StatusBadRequest, gin.H{"error": "missing_product_id"})
			return
		}
		setErr := carts.SetQuantity(contextGin.Request.Context(), userID, request.ProductID, request.Quantity)
		if setErr != nil {
			if errors.Is(setErr, ErrCartItemNotFound) {
				contextGin.JSON(http.StatusNotFound, gin.H{"error": "item_not_found"})
				return
			}
			logger.Error("cart quantity update failed",
				zap.String("code", "cart.update_quantity.store_error"),
				zap.Error(setErr))
			contextGin.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
			return
		}
		respondWithCart(contextGin, logger, carts, userID)
	})
}

func respondWithCart(contextGin *gin.Context, logger *zap.Logger, carts CartStore, userID string) {
	items, listErr := carts.Items(contextGin.Request.Context(), userID)
	if listErr != nil {
		logger.Error("cart listing failed",
			zap.String("code", "cart.list.store_error"),
			zap.Error(listErr))
		contextGin.JSON(http.StatusInternalServerError, gin.H{"error": "cart_unavailable"})
		return
	}
	totalPrice := 0.0
	for _, item := range items {
		totalPrice += item.Price * float64(item.Quantity)
	}
	contextGin.JSON(http.StatusOK, gin.H{
		"items":       items,
		"total_price": totalPrice,
	})
}
