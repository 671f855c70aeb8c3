package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/d9705996/checkin/internal/api/jsonapi"
	"github.com/d9705996/checkin/internal/api/middleware"
	"github.com/d9705996/checkin/internal/authz"
	"github.com/d9705996/checkin/internal/model"
	"gorm.io/gorm"
)

// DocumentHandler serves the employee document endpoints. Documents are
// append-only: re-uploads create a new version and signed rows never change.
type DocumentHandler struct {
	db *gorm.DB
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(db *gorm.DB) *DocumentHandler {
	return &DocumentHandler{db: db}
}

// loadEmployee resolves the employee an operation targets and runs the
// scope check for the given action.
func (h *DocumentHandler) loadEmployee(w http.ResponseWriter, r *http.Request, employeeID string, action authz.Action) *model.Employee {
	claims := middleware.ClaimsFromContext(r.Context())
	var emp model.Employee
	if err := h.db.WithContext(r.Context()).Preload("User").
		First(&emp, "id = ?", employeeID).Error; err != nil {
		renderDomainError(w, err)
		return nil
	}
	if err := authz.Authorize(claims, action, employeeScope(&emp)); err != nil {
		renderDomainError(w, err)
		return nil
	}
	return &emp
}

// List handles GET /api/v1/employees/{id}/documents. Employees can read
// their own documents; staff read within their scope.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	emp := h.loadEmployee(w, r, r.PathValue("id"), authz.ActionDocumentRead)
	if emp == nil {
		return
	}

	q := h.db.WithContext(r.Context()).Where("employee_id = ?", emp.ID)
	if t := r.URL.Query().Get("document_type"); t != "" {
		q = q.Where("document_type = ?", t)
	}

	var docs []model.Document
	if err := q.Order("document_type ASC, version DESC").Find(&docs).Error; err != nil {
		renderDomainError(w, err)
		return
	}

	data := make([]any, 0, len(docs))
	for i := range docs {
		data = append(data, documentResource(&docs[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}

// Upload handles POST /api/v1/employees/{id}/documents. A repeat upload of
// the same document type gets the next version number; older versions stay.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	emp := h.loadEmployee(w, r, r.PathValue("id"), authz.ActionDocumentWrite)
	if emp == nil {
		return
	}

	var req struct {
		DocumentType string `json:"document_type"`
		FilePath     string `json:"file_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	docType := model.DocumentType(req.DocumentType)
	if !docType.Valid() {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"invalid_document_type", "Unprocessable Entity",
			"document_type "+req.DocumentType+" is not recognised")
		return
	}
	if req.FilePath == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"missing_field", "Unprocessable Entity", "file_path is required")
		return
	}

	doc := model.Document{
		EmployeeID:   emp.ID,
		DocumentType: docType,
		FilePath:     req.FilePath,
	}
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&model.Document{}).
			Where("employee_id = ? AND document_type = ?", emp.ID, docType).
			Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}
		doc.Version = maxVersion + 1
		return tx.Create(&doc).Error
	})
	if err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, documentResource(&doc))
}

// Sign handles POST /api/v1/documents/{id}/sign. Write-once: a document that
// already carries a signature rejects any further sign attempt.
func (h *DocumentHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var doc model.Document
	if err := h.db.WithContext(r.Context()).
		First(&doc, "id = ?", r.PathValue("id")).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	if h.loadEmployee(w, r, doc.EmployeeID, authz.ActionDocumentWrite) == nil {
		return
	}
	if doc.IsSigned {
		jsonapi.RenderError(w, http.StatusConflict,
			"already_signed", "Conflict", "document is already signed")
		return
	}

	var req struct {
		Image      string `json:"image"`
		SignerName string `json:"signer_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}
	if req.Image == "" || req.SignerName == "" {
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"missing_field", "Unprocessable Entity", "image and signer_name are required")
		return
	}

	now := time.Now()
	sig := model.SignatureBlock{
		Image:      req.Image,
		SignerName: req.SignerName,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
		SignedAt:   now,
	}
	// Guard on is_signed in the WHERE so two concurrent signs cannot both win.
	res := h.db.WithContext(r.Context()).Model(&model.Document{}).
		Where("id = ? AND is_signed = ?", doc.ID, false).
		Updates(map[string]any{
			"is_signed":      true,
			"signed_at":      now,
			"signature_data": sig,
		})
	if res.Error != nil {
		renderDomainError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		jsonapi.RenderError(w, http.StatusConflict,
			"already_signed", "Conflict", "document is already signed")
		return
	}

	if err := h.db.WithContext(r.Context()).First(&doc, "id = ?", doc.ID).Error; err != nil {
		renderDomainError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, documentResource(&doc))
}
