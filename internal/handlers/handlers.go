package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/faces-api/internal/repository"
	"github.com/example/faces-api/internal/usecase"
	"github.com/example/faces-api/internal/validation"
)

const (
	// MaxUploadSize is the default cap on submission bodies.
	MaxUploadSize = 10 << 20

	UploadPath = "/upload"
	PhotosPath = "/photos"
)

// Submitter runs the photo submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, sub usecase.Submission) (*usecase.SubmitResult, error)
}

// Finder answers bounding-box queries.
type Finder interface {
	FindInBox(ctx context.Context, box validation.BoundingBox) ([]*repository.PhotoRecord, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, submitter Submitter, finder Finder, maxUploadBytes int64) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = MaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Every method is routed here so that admission runs before the method check.
	router.Any(UploadPath, func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

		result, err := submitter.Submit(c.Request.Context(), usecase.Submission{
			Method:        c.Request.Method,
			ContentType:   c.GetHeader("Content-Type"),
			SourceAddress: c.ClientIP(),
			Body:          c.Request.Body,
		})
		if err != nil {
			writeFailure(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": result.URL})
	})

	router.GET(PhotosPath, func(c *gin.Context) {
		params := make(map[string]string, 4)
		for _, key := range []string{"startX", "endX", "startY", "endY"} {
			params[key] = c.Query(key)
		}

		box, err := validation.ParseBoundingBox(params)
		if err != nil {
			status, body := QueryErrorResponse(err)
			c.JSON(status, body)
			return
		}

		records, err := finder.FindInBox(c.Request.Context(), box)
		if err != nil {
			status, body := QueryErrorResponse(err)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, records)
	})
}

func writeFailure(c *gin.Context, err error) {
	status, body := SubmitErrorResponse(err)
	_ = c.Error(err)
	c.JSON(status, body)
}

// SubmitErrorResponse maps a submission error to its status and JSON body.
func SubmitErrorResponse(err error) (int, map[string]string) {
	var failure *usecase.Failure
	if !errors.As(err, &failure) {
		failure = &usecase.Failure{Kind: usecase.KindUnexpectedError, Err: err}
	}
	return failure.StatusCode(), failure.Body()
}

// QueryErrorResponse maps a bounding-box query error to its status and JSON body.
func QueryErrorResponse(err error) (int, map[string]string) {
	switch {
	case errors.Is(err, validation.ErrMissingCoordinates):
		return http.StatusBadRequest, map[string]string{"error": "Missing coordinates"}
	case errors.Is(err, validation.ErrInvalidBoundingBox):
		return http.StatusBadRequest, map[string]string{"error": "Invalid coordinates"}
	default:
		return http.StatusInternalServerError, map[string]string{"error": "Internal server error"}
	}
}
