package documents

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Manelgon/doctoria/internal/platform/blobstore"
	"github.com/Manelgon/doctoria/internal/platform/notification"
	"github.com/Manelgon/doctoria/internal/platform/render"
	"github.com/Manelgon/doctoria/pkg/pagination"
)

type Handler struct {
	ctl     *Controller
	svc     *Service
	catalog *Catalog
	blobs   blobstore.Store
	signer  *blobstore.URLSigner

	padMu sync.Mutex
	pads  map[string]*InkPad
}

func NewHandler(ctl *Controller, svc *Service, catalog *Catalog, blobs blobstore.Store, signer *blobstore.URLSigner) *Handler {
	return &Handler{
		ctl:     ctl,
		svc:     svc,
		catalog: catalog,
		blobs:   blobs,
		signer:  signer,
		pads:    make(map[string]*InkPad),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/templates", h.ListTemplates)
	api.POST("/documents/preview", h.PreviewBind)
	api.POST("/documents/finalize", h.Finalize)
	api.POST("/documents/send-for-signature", h.SendForCounterSignature)
	api.GET("/documents", h.ListDocuments)
	api.GET("/documents/:id", h.GetDocument)
	api.GET("/documents/:id/regenerate", h.RegenerationSeed)
	api.POST("/documents/:id/signed-copy", h.UploadSignedCopy)
	api.GET("/documents/:id/view", h.ViewDocument)
	api.GET("/documents/:id/download", h.DownloadDocument)
	api.POST("/documents/:id/email", h.EmailDocument)
	api.GET("/blobs/view", h.RedeemView)

	api.POST("/signature-pads", h.CreatePad)
	api.POST("/signature-pads/:id/strokes", h.AddStroke)
	api.POST("/signature-pads/:id/clear", h.ClearPad)
	api.GET("/signature-pads/:id/export", h.ExportPad)
}

// httpError maps the domain error taxonomy to HTTP status codes.
func httpError(err error) *echo.HTTPError {
	var (
		vErr *ValidationError
		rErr *render.RenderError
		sErr *blobstore.StorageError
		gErr *RegistryError
	)
	switch {
	case errors.Is(err, ErrDoctorSignatureRequired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	case errors.As(err, &rErr):
		return echo.NewHTTPError(http.StatusInternalServerError, rErr.Error())
	case errors.As(err, &sErr), errors.As(err, &gErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.List())
}

// PreviewBind resolves a template against a bind context without rendering
// or persisting anything.
func (h *Handler) PreviewBind(c echo.Context) error {
	var req struct {
		TemplateID string      `json:"template_id"`
		Context    BindContext `json:"context"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := h.catalog.Bind(req.TemplateID, req.Context)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) Finalize(c echo.Context) error {
	var req ComposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.ctl.Finalize(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// counterSignatureResponse pairs the registered record with the delivery
// outcome of the counter-signature request.
type counterSignatureResponse struct {
	Document     *DocumentRecord            `json:"document"`
	Notification *notification.Notification `json:"notification,omitempty"`
}

func (h *Handler) SendForCounterSignature(c echo.Context) error {
	var req ComposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, note, err := h.ctl.SendForCounterSignature(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, counterSignatureResponse{Document: rec, Notification: note})
}

type documentView struct {
	*DocumentRecord
	Status Status         `json:"status"`
	Expiry Classification `json:"expiry"`
}

func (h *Handler) ListDocuments(c echo.Context) error {
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	f := Filter{
		Text: c.QueryParam("q"),
		Tab:  Tab(c.QueryParam("tab")),
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	now := h.ctl.now().UTC()
	views := make([]documentView, 0, len(items))
	for _, rec := range items {
		views = append(views, documentView{
			DocumentRecord: rec,
			Status:         rec.Status(now),
			Expiry:         Classify(rec.ExpiresAt, now),
		})
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	now := h.ctl.now().UTC()
	return c.JSON(http.StatusOK, documentView{
		DocumentRecord: rec,
		Status:         rec.Status(now),
		Expiry:         Classify(rec.ExpiresAt, now),
	})
}

func (h *Handler) RegenerationSeed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	seed, err := h.ctl.RegenerationSeed(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, seed)
}

func (h *Handler) UploadSignedCopy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "application/pdf"
	}
	rec, err := h.ctl.UploadSignedCopy(c.Request().Context(), id, data, contentType)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ViewDocument mints a short-lived signed URL for inline viewing.
func (h *Handler) ViewDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if rec.StorageRef == "" {
		return echo.NewHTTPError(http.StatusNotFound, "document has no stored artifact")
	}
	token, err := h.signer.Sign(rec.StorageRef)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url": "/api/v1/blobs/view?token=" + token,
	})
}

// RedeemView streams blob bytes for a valid signed-URL token.
func (h *Handler) RedeemView(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}
	path, err := h.signer.Verify(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}
	data, contentType, err := h.blobs.Get(c.Request().Context(), path)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Content-Disposition", "inline")
	return c.Blob(http.StatusOK, contentType, data)
}

// DownloadDocument streams the stored artifact as an attachment.
func (h *Handler) DownloadDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if rec.StorageRef == "" {
		return echo.NewHTTPError(http.StatusNotFound, "document has no stored artifact")
	}
	data, contentType, err := h.blobs.Get(c.Request().Context(), rec.StorageRef)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+rec.Name+`.pdf"`)
	return c.Blob(http.StatusOK, contentType, data)
}

func (h *Handler) EmailDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ctl.EmailDocument(c.Request().Context(), id, req.Recipient); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) || errors.Is(err, ErrNotFound) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

// -- Signature pads --

func (h *Handler) CreatePad(c echo.Context) error {
	var req struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := uuid.New().String()
	h.padMu.Lock()
	h.pads[id] = NewInkPad(req.Width, req.Height)
	h.padMu.Unlock()
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) pad(id string) (*InkPad, bool) {
	h.padMu.Lock()
	defer h.padMu.Unlock()
	p, ok := h.pads[id]
	return p, ok
}

func (h *Handler) AddStroke(c echo.Context) error {
	p, ok := h.pad(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "pad not found")
	}
	var req struct {
		Points []Point `json:"points"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.AddStroke(req.Points)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ClearPad(c echo.Context) error {
	p, ok := h.pad(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "pad not found")
	}
	p.Clear()
	return c.NoContent(http.StatusNoContent)
}

// ExportPad renders the pad to PNG and discards it. Captured ink lives only
// until export; the returned image is what gets embedded into a document.
func (h *Handler) ExportPad(c echo.Context) error {
	id := c.Param("id")
	p, ok := h.pad(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "pad not found")
	}
	img, err := p.ExportImage()
	if err != nil {
		if errors.Is(err, ErrEmptyPad) {
			return echo.NewHTTPError(http.StatusConflict, "signature pad is empty")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.padMu.Lock()
	delete(h.pads, id)
	h.padMu.Unlock()
	return c.Blob(http.StatusOK, "image/png", img)
}
