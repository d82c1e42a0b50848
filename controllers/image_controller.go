package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	aws_pkg "shop-service/pkg/aws"
	"shop-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultUploadExpiry = 15 * time.Minute
	maxUploadExpiry     = time.Hour
)

// imageExtensions lists the accepted upload content types.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageController hands out presigned uploads for product images. The admin
// client PUTs the file to upload_url and then sets image_url on the product.
type ImageController struct {
	Products *services.ProductService
	Images   aws_pkg.ImagePresigner
	Logger   *zap.Logger
}

func NewImageController(products *services.ProductService, images aws_pkg.ImagePresigner, logger *zap.Logger) *ImageController {
	return &ImageController{Products: products, Images: images, Logger: logger}
}

// PresignUpload handles POST /admin/products/:id/image.
func (ic *ImageController) PresignUpload(c *gin.Context) {
	if ic.Images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image uploads not configured"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	contentType := c.DefaultQuery("content_type", "image/jpeg")
	ext, ok := imageExtensions[contentType]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_type must be one of image/jpeg, image/png, image/webp, image/gif"})
		return
	}

	expires := defaultUploadExpiry
	if raw := c.Query("expires"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			expires = time.Duration(secs) * time.Second
		}
	}
	if expires > maxUploadExpiry {
		expires = maxUploadExpiry
	}

	ctx := c.Request.Context()
	if _, err := ic.Products.GetProduct(ctx, uint(id)); err != nil {
		se := services.ToServiceError(err)
		c.JSON(se.StatusCode, gin.H{"error": se.Message})
		return
	}

	key := fmt.Sprintf("products/%d/%s%s", id, uuid.NewString(), ext)
	upload, err := ic.Images.PresignImageUpload(ctx, key, contentType, expires)
	if err != nil {
		ic.Logger.Error("Failed to presign image upload", zap.Uint64("product_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to presign upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_url": upload.URL,
		"method":     upload.Method,
		"headers":    upload.Headers,
		"key":        key,
		"public_url": ic.Images.PublicURL(key),
		"expires_in": int(expires.Seconds()),
	})
}
