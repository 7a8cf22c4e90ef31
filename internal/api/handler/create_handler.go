package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/fabseal/fabseal/internal/api/dto"
	"github.com/fabseal/fabseal/internal/keyspace"
	"github.com/fabseal/fabseal/internal/store"
	"github.com/gin-gonic/gin"
)

// room for multipart boundaries and part headers on top of the image limit
const multipartOverhead = 64 << 10

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// New handles POST /api/v1/create/new
// Starts a fresh request and stores its id in the cookie
func (h *CreateHandler) New(c *gin.Context) {
	id := h.mintRequestID(c)

	h.logger.Info("Request created", slog.String("request_id", id.String()))
	c.JSON(http.StatusOK, dto.RequestIDResponse{RequestID: id.String()})
}

// Upload handles POST /api/v1/create/upload
// Stores the raw image and its preprocessed height map
func (h *CreateHandler) Upload(c *gin.Context) {
	id := h.ensureRequestID(c)
	logger := h.logger.With(slog.String("request_id", id.String()))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Upload limit exceeded"})
			return
		}
		logger.Warn("Invalid multipart body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid multipart body"})
		return
	}

	var files []*multipart.FileHeader
	for _, fhs := range form.File {
		files = append(files, fhs...)
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No image uploaded"})
		return
	}

	for _, fh := range files {
		if !isAllowedImage(fh.Header.Get("Content-Type")) {
			logger.Info("Rejected upload with unsupported type",
				slog.String("content_type", fh.Header.Get("Content-Type")),
			)
			c.JSON(http.StatusUnsupportedMediaType, dto.ErrorResponse{Error: "Only PNG and JPEG images are supported"})
			return
		}
		if fh.Size > h.maxUploadSize {
			logger.Warn("Rejected upload over limit",
				slog.Int64("size", fh.Size),
				slog.Int64("limit", h.maxUploadSize),
			)
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Upload limit exceeded"})
			return
		}
	}

	ctx := c.Request.Context()
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			logger.Error("Failed to read upload", slog.Any("error", err))
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to read upload"})
			return
		}

		if err := h.store.Put(ctx, keyspace.Image, id, data); err != nil {
			logger.Error("Failed to store image", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store image"})
			return
		}

		processed, err := h.preprocess(data)
		if err != nil {
			logger.Warn("Failed to process image", slog.Any("error", err))
			c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "Image could not be processed"})
			return
		}

		if err := h.store.Put(ctx, keyspace.ProcessedImage, id, processed); err != nil {
			logger.Error("Failed to store processed image", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store image"})
			return
		}
	}

	logger.Info("Upload stored", slog.Int("images", len(files)))
	c.JSON(http.StatusOK, dto.UploadResponse{RequestID: id.String(), Images: len(files)})
}

// Start handles POST /api/v1/create/start
// Queues the uploaded image for conversion
func (h *CreateHandler) Start(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No request in progress"})
		return
	}

	entryID, err := h.queue.Enqueue(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to enqueue request",
			slog.String("request_id", id.String()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to start conversion"})
		return
	}

	h.logger.Info("Conversion queued",
		slog.String("request_id", id.String()),
		slog.String("entry_id", entryID),
	)
	c.JSON(http.StatusAccepted, dto.StartResponse{RequestID: id.String(), EntryID: entryID})
}

// Result handles GET /api/v1/create/result?type=model|heightmap
// Returns the converted model or the preprocessed height map
func (h *CreateHandler) Result(c *gin.Context) {
	var req dto.ResultRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "type must be one of: model, heightmap"})
		return
	}

	id, ok := requestID(c)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
		return
	}

	category, contentType := keyspace.Result, "model/stl"
	if req.Type == dto.ResultTypeHeightmap {
		category, contentType = keyspace.ProcessedImage, "image/png"
	}

	data, err := h.store.Get(c.Request.Context(), category, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Not found"})
			return
		}
		h.logger.Error("Failed to fetch result",
			slog.String("request_id", id.String()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to fetch result"})
		return
	}

	if req.Type == dto.ResultTypeModel {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="model_%s.stl"`, id))
	}
	c.Data(http.StatusOK, contentType, data)
}

func isAllowedImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return allowedImageTypes[mediaType]
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
