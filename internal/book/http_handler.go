package book

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bookcatalog/internal/httpx"

	"go.uber.org/zap"
)

const maxPageSize = 100

type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewHTTPHandler(service *Service, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{service: service, logger: logger}
}

// Register mounts the book routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /books", h.List)
	mux.HandleFunc("POST /books", h.Create)
	mux.HandleFunc("GET /books/{id}", h.Get)
	mux.HandleFunc("PUT /books/{id}", h.Update)
	mux.HandleFunc("DELETE /books/{id}", h.Delete)
	mux.HandleFunc("GET /books/{id}/availability", h.Availability)
}

type createdResponse struct {
	Message string `json:"message"`
	BookID  int64  `json:"book_id"`
}

type availabilityResponse struct {
	Availability bool `json:"availability"`
}

// @Summary List books
// @Description List books filtered by title and author, ordered by id
// @Tags books
// @Produce json
// @Param title query string false "Case-insensitive title substring"
// @Param author query string false "Case-insensitive author substring"
// @Param limit query int false "Page size, at most 100"
// @Param cursor query string false "Cursor from X-Next-Cursor"
// @Success 200 {array} Book
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := Query{
		Title:  strings.TrimSpace(query.Get("title")),
		Author: strings.TrimSpace(query.Get("author")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_QUERY", "limit must be a positive integer", nil)
			return
		}
		params.Limit = min(limit, maxPageSize)
	}

	cursor, err := DecodeCursor(query.Get("cursor"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_QUERY", "Invalid cursor", nil)
		return
	}
	params.AfterID = cursor.AfterID

	books, err := h.service.List(r.Context(), params)
	if err != nil {
		h.internalError(w, r, "list books", err)
		return
	}
	if len(books) == 0 {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "No books found", nil)
		return
	}

	if params.Limit > 0 && len(books) == params.Limit {
		w.Header().Set("X-Next-Cursor", EncodeCursor(CursorData{AfterID: books[len(books)-1].ID}))
	}
	httpx.JSON(w, http.StatusOK, books)
}

// @Summary Add a book
// @Tags books
// @Accept json
// @Produce json
// @Param book body CreateInput true "Book"
// @Success 201 {object} createdResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !h.decode(w, r, &in) {
		return
	}

	b, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "create book", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdResponse{Message: "Book added successfully", BookID: b.ID})
}

// @Summary Get a book
// @Tags books
// @Produce json
// @Param id path int true "Book id"
// @Success 200 {object} Book
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get book", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

// @Summary Update a book
// @Description Only the fields present in the body are changed
// @Tags books
// @Accept json
// @Produce json
// @Param id path int true "Book id"
// @Param book body UpdateInput true "Fields to change"
// @Success 200 {object} httpx.MessageResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var in UpdateInput
	if !h.decode(w, r, &in) {
		return
	}

	if _, err := h.service.Update(r.Context(), id, in); err != nil {
		h.writeError(w, r, "update book", err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, "Book updated successfully")
}

// @Summary Delete a book
// @Tags books
// @Produce json
// @Param id path int true "Book id"
// @Success 200 {object} httpx.MessageResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, "delete book", err)
		return
	}
	httpx.JSONMessage(w, http.StatusOK, "Book deleted successfully")
}

// @Summary Check availability
// @Description Returns the stored flag and emits an availability event
// @Tags books
// @Produce json
// @Param id path int true "Book id"
// @Success 200 {object} availabilityResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id}/availability [get]
func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	available, err := h.service.CheckAvailability(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "check availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, availabilityResponse{Availability: available})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_ID", "Book id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.JSONError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
			return false
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", nil)
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]httpx.ErrorDetail, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, httpx.ErrorDetail{Field: f.Field, Message: f.Message})
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
	case errors.Is(err, ErrDuplicateISBN):
		httpx.JSONError(w, r, http.StatusBadRequest, "DUPLICATE_ISBN", ErrDuplicateISBN.Error(),
			[]httpx.ErrorDetail{{Field: "isbn", Message: ErrDuplicateISBN.Error()}})
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	default:
		h.internalError(w, r, op, err)
	}
}

func (h *HTTPHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed",
		zap.String("request_id", httpx.RequestIDFrom(r)),
		zap.Error(err),
	)
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}
