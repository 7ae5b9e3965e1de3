package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ecomware/tx-summary-db/pkg/ingest"
	"github.com/ecomware/tx-summary-db/pkg/logging"
	"github.com/ecomware/tx-summary-db/pkg/store"
	"github.com/ecomware/tx-summary-db/pkg/summary"
)

// UploadResponse is the body returned by a successful upload.
type UploadResponse struct {
	Status       string `json:"status"`
	InsertedRows int64  `json:"inserted_rows"`
	Message      string `json:"message,omitempty"`
}

// SummaryResponse is the body returned by a summary query. Min, Max, and
// Mean are null when the user has no matching rows.
type SummaryResponse struct {
	UserID int64    `json:"user_id"`
	Start  *string  `json:"start"`
	End    *string  `json:"end"`
	Count  int64    `json:"count"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
}

// ErrorResponse carries a user-correctable failure detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "multipart field 'file' is required"})
	}

	name := strings.ToLower(fh.Filename)
	if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".csv.gz") {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "only CSV files are accepted"})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "failed to open uploaded file"})
	}
	defer f.Close()

	reader, closeFn, err := ingest.DecompressReader(f, name)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid gzip stream: " + err.Error()})
	}
	if closeFn != nil {
		defer closeFn()
	}

	opts := ingest.Options{ChunkSize: s.chunkSize, Replace: true}
	inserted, err := ingest.Run(c.Request().Context(), s.store, reader, opts)
	if err != nil {
		return uploadError(c, err)
	}

	return c.JSON(http.StatusOK, UploadResponse{
		Status:       "ok",
		InsertedRows: inserted,
		Message:      "file processed successfully",
	})
}

func uploadError(c echo.Context, err error) error {
	var schemaErr *ingest.SchemaError
	var rowErr *ingest.RowParseError

	switch {
	case errors.Is(err, store.ErrIngestActive):
		return c.JSON(http.StatusConflict, ErrorResponse{Detail: err.Error()})
	case errors.Is(err, ingest.ErrEmptyInput),
		errors.As(err, &schemaErr),
		errors.As(err, &rowErr):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
	default:
		apiLog := logging.WithComponent("api")
		apiLog.Error().Err(err).Msg("upload failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "failed to process CSV"})
	}
}

func (s *Server) handleSummary(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "user_id must be a positive integer"})
	}

	res, err := summary.Summarize(
		c.Request().Context(),
		s.store,
		userID,
		c.QueryParam("start"),
		c.QueryParam("end"),
	)
	if err != nil {
		var rangeErr *summary.InvalidTimeRangeError
		switch {
		case errors.Is(err, summary.ErrInvalidUserID), errors.As(err, &rangeErr):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
		default:
			apiLog := logging.WithComponent("api")
			apiLog.Error().Err(err).Msg("summary query failed")
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "failed to query summary"})
		}
	}

	return c.JSON(http.StatusOK, SummaryResponse{
		UserID: res.UserID,
		Start:  res.Start,
		End:    res.End,
		Count:  res.Count,
		Min:    res.Min,
		Max:    res.Max,
		Mean:   res.Mean,
	})
}
