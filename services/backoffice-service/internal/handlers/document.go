package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/docstore"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/storage"
)

const maxDocumentBytes = 25 << 20

type DocumentHandler struct {
	repo   *storage.ContractRepository
	store  docstore.Store
	logger *slog.Logger
}

func NewDocumentHandler(repo *storage.ContractRepository, store docstore.Store, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{repo: repo, store: store, logger: logger}
}

type documentItem struct {
	ID          string `json:"id"`
	ContractID  string `json:"contract_id,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ObjectURL   string `json:"object_url"`
	CreatedAt   string `json:"created_at"`
}

// Upload streams a multipart file to the object store and persists the
// metadata row. Bytes never touch the database.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := resolveCompanyID(r, r.FormValue("company_id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company identity is required")
		return
	}

	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := companyID + "/" + uuid.NewString() + "/" + header.Filename
	objectURL, err := h.store.Put(r.Context(), key, contentType, file)
	if err != nil {
		if errors.Is(err, docstore.ErrUnavailable) {
			httpx.WriteError(w, http.StatusServiceUnavailable, "document storage unavailable")
			return
		}
		h.logger.Error("document upload failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	id, err := h.repo.CreateDocument(r.Context(), &model.Document{
		CompanyID:   companyID,
		ContractID:  strings.TrimSpace(r.FormValue("contract_id")),
		Filename:    header.Filename,
		ContentType: contentType,
		SizeBytes:   header.Size,
		ObjectURL:   objectURL,
	})
	if err != nil {
		h.logger.Error("create document row failed", "err", err)
		// Best effort: don't leave an orphan object behind.
		if delErr := h.store.Delete(r.Context(), objectURL); delErr != nil {
			h.logger.Warn("orphan object cleanup failed", "err", delErr, "url", objectURL)
		}
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"document_id": id,
		"object_url":  objectURL,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := resolveCompanyID(r, r.URL.Query().Get("company_id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id is required")
		return
	}

	docs, err := h.repo.ListDocuments(r.Context(), companyID, queryLimit(r, 100))
	if err != nil {
		h.logger.Error("list documents failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]documentItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentItem{
			ID:          d.ID,
			ContractID:  d.ContractID,
			Filename:    d.Filename,
			ContentType: d.ContentType,
			SizeBytes:   d.SizeBytes,
			ObjectURL:   d.ObjectURL,
			CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type deleteDocumentRequest struct {
	DocumentID string `json:"document_id"`
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req deleteDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	companyID := resolveCompanyID(r, "")
	if req.DocumentID == "" || companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "document_id is required")
		return
	}

	objectURL, err := h.repo.DeleteDocument(r.Context(), companyID, req.DocumentID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("delete document failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	if err := h.store.Delete(r.Context(), objectURL); err != nil && !errors.Is(err, docstore.ErrUnavailable) {
		// Metadata row is gone; log the stray object and move on.
		h.logger.Warn("object delete failed", "err", err, "url", objectURL)
	}

	httpx.WriteMessage(w, http.StatusOK, "document deleted")
}
