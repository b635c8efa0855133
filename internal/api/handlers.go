package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/taxonid/internal/apperr"
	"github.com/starford/taxonid/internal/lookup"
	"github.com/starford/taxonid/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *lookup.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *lookup.Service) *Handler {
	return &Handler{svc: svc}
}

// taxID parses the {taxid} URL parameter.
func taxID(r *http.Request) (models.TaxID, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, "taxid"), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return models.TaxID(n), true
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve a prokaryotic taxon name at a rank
//	@Tags			resolve
//	@Produce		json
//	@Param			name	query		string	true	"Scientific name"
//	@Param			rank	query		string	true	"Rank, e.g. genus or domain"
//	@Success		200		{object}	Resolution
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	Resolution
//	@Failure		409		{object}	Resolution
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := models.Query{
		Name: r.URL.Query().Get("name"),
		Rank: r.URL.Query().Get("rank"),
	}
	if q.Name == "" || q.Rank == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'name' and 'rank' are required"))
		return
	}

	res, err := h.svc.Resolve(r.Context(), q)
	if err != nil {
		slog.Error("resolve failed", slog.String("name", q.Name), slog.String("rank", q.Rank), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	switch res.Outcome {
	case models.OutcomeNotFound:
		writeJSON(w, http.StatusNotFound, res)
	case models.OutcomeAmbiguous:
		writeJSON(w, http.StatusConflict, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// ResolveBatch handles POST /api/resolve/batch.
//
//	@Summary		Resolve many names in one request
//	@Tags			resolve
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResolveBatchRequest	true	"Queries"
//	@Success		200		{object}	ResolveBatchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve/batch [post]
func (h *Handler) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req ResolveBatchRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	results, err := h.svc.ResolveBatch(r.Context(), req.Queries)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("batch resolve failed", slog.Int("queries", len(req.Queries)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ResolveBatchResponse{Results: results})
}

// Rank handles GET /api/taxa/{taxid}/rank.
//
//	@Summary		Get the normalized rank of a taxon
//	@Tags			taxa
//	@Produce		json
//	@Param			taxid	path		int	true	"Taxon identifier"
//	@Success		200		{object}	RankResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/taxa/{taxid}/rank [get]
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	id, ok := taxID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid taxid"))
		return
	}
	rank, err := h.svc.Rank(r.Context(), id)
	if err != nil {
		slog.Error("rank failed", slog.Int64("taxid", int64(id)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{TaxID: id, Rank: rank})
}

// Prokaryote handles GET /api/taxa/{taxid}/prokaryote.
//
//	@Summary		Check whether a taxon is bacterial or archaeal
//	@Tags			taxa
//	@Produce		json
//	@Param			taxid	path		int	true	"Taxon identifier"
//	@Success		200		{object}	ProkaryoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/taxa/{taxid}/prokaryote [get]
func (h *Handler) Prokaryote(w http.ResponseWriter, r *http.Request) {
	id, ok := taxID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid taxid"))
		return
	}
	prok, err := h.svc.IsProkaryote(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("prokaryote check failed", slog.Int64("taxid", int64(id)), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ProkaryoteResponse{TaxID: id, Prokaryote: prok})
}

// Ascendants handles GET /api/taxa/{taxid}/ascendants.
//
//	@Summary		Get the chain from a taxon up to the root
//	@Tags			taxa
//	@Produce		json
//	@Param			taxid	path		int		true	"Taxon identifier"
//	@Param			names	query		bool	false	"Include id:name labels"
//	@Success		200		{object}	AscendantsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/taxa/{taxid}/ascendants [get]
func (h *Handler) Ascendants(w http.ResponseWriter, r *http.Request) {
	id, ok := taxID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid taxid"))
		return
	}
	withNames, _ := strconv.ParseBool(r.URL.Query().Get("names"))

	l, err := h.svc.Ascendants(r.Context(), id, withNames)
	if err != nil {
		slog.Error("ascendants failed", slog.Int64("taxid", int64(id)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, AscendantsResponse{TaxID: id, Ascendants: l.TaxIDs, Names: l.Names})
}

// Names handles POST /api/names.
//
//	@Summary		Label taxids as id:name
//	@Tags			taxa
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NamesRequest	true	"Taxids"
//	@Success		200		{object}	NamesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/names [post]
func (h *Handler) Names(w http.ResponseWriter, r *http.Request) {
	var req NamesRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	names, err := h.svc.Names(r.Context(), req.TaxIDs)
	if err != nil {
		slog.Error("names failed", slog.Int("taxids", len(req.TaxIDs)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NamesResponse{Names: names})
}
