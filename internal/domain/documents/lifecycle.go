package documents

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Manelgon/doctoria/internal/platform/blobstore"
	"github.com/Manelgon/doctoria/internal/platform/notification"
	"github.com/Manelgon/doctoria/internal/platform/render"
)

// Notifier dispatches templated messages. Delivery is best-effort: a
// notification failure never rolls back registry state.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// ComposeRequest is the input to Finalize and SendForCounterSignature.
// Ink images are exported pad PNGs; either may be absent.
type ComposeRequest struct {
	TemplateID   string      `json:"template_id"`
	DoctorID     string      `json:"doctor_id"`
	PatientEmail string      `json:"patient_email,omitempty"`
	Context      BindContext `json:"context"`
	DoctorInk    []byte      `json:"doctor_ink,omitempty"`
	PatientInk   []byte      `json:"patient_ink,omitempty"`
}

func (r ComposeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TemplateID, validation.Required),
		validation.Field(&r.PatientEmail, validation.When(r.PatientEmail != "", validation.Length(3, 254))),
	)
}

// Seed prefills a new composition from a prior generated document.
type Seed struct {
	TemplateID  string `json:"template_id"`
	CustomNotes string `json:"custom_notes"`
}

// Controller drives the document lifecycle: it binds a template, embeds
// captured ink, renders the artifact, stores the blob, and registers the
// record, strictly in that order. A failure at any step aborts the rest, so
// no partial registry row ever exists.
type Controller struct {
	catalog  *Catalog
	renderer *render.Renderer
	blobs    blobstore.Store
	registry *Service
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewController(catalog *Catalog, renderer *render.Renderer, blobs blobstore.Store, registry *Service, notifier Notifier, log zerolog.Logger) *Controller {
	return &Controller{
		catalog:  catalog,
		renderer: renderer,
		blobs:    blobs,
		registry: registry,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func (ctl *Controller) compose(ctx context.Context, req ComposeRequest, signed bool) (*DocumentRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Msg: "invalid compose request", Err: err}
	}
	now := ctl.now().UTC()
	bctx := req.Context
	if bctx.Today.IsZero() {
		bctx.Today = now
	}

	doc, err := ctl.catalog.Bind(req.TemplateID, bctx)
	if err != nil {
		return nil, err
	}
	Embed(doc, req.DoctorInk, req.PatientInk)
	doc.CreatedAt = now

	art, err := ctl.renderer.Render(ctx, doc)
	if err != nil {
		return nil, err
	}

	tpl, _ := ctl.catalog.Get(req.TemplateID)
	path := blobstore.BuildPath(bctx.PatientIdentifier, tpl.Name, now)
	if err := ctl.blobs.Put(ctx, path, art.ContentType, art.Bytes, true); err != nil {
		return nil, err
	}

	rec := &DocumentRecord{
		PatientID:  bctx.PatientIdentifier,
		Name:       tpl.Name,
		Type:       tpl.Type,
		StorageRef: path,
		IsSigned:   signed,
		CreatedAt:  now,
		Metadata: Metadata{
			TemplateID:  req.TemplateID,
			DoctorID:    req.DoctorID,
			CustomNotes: bctx.CustomNotes,
		},
	}
	if signed {
		rec.SignedAt = &now
	}
	if err := ctl.registry.Register(ctx, rec); err != nil {
		return nil, err
	}

	ctl.log.Info().
		Str("document_id", rec.ID.String()).
		Str("patient_id", rec.PatientID).
		Str("template_id", req.TemplateID).
		Bool("signed", signed).
		Int("pages", art.Pages).
		Msg("document composed")
	return rec, nil
}

// Finalize renders and registers a signed document. The doctor signature is
// mandatory; without it nothing is rendered, stored, or registered.
func (ctl *Controller) Finalize(ctx context.Context, req ComposeRequest) (*DocumentRecord, error) {
	if len(req.DoctorInk) == 0 {
		return nil, ErrDoctorSignatureRequired
	}
	return ctl.compose(ctx, req, true)
}

// SendForCounterSignature registers the document as pending the patient's
// signature and notifies the patient. The doctor must have signed already.
// The returned notification carries the delivery outcome; a failed delivery
// never rolls back the record.
func (ctl *Controller) SendForCounterSignature(ctx context.Context, req ComposeRequest) (*DocumentRecord, *notification.Notification, error) {
	if len(req.DoctorInk) == 0 {
		return nil, nil, ErrDoctorSignatureRequired
	}
	rec, err := ctl.compose(ctx, req, false)
	if err != nil {
		return nil, nil, err
	}

	var note *notification.Notification
	if ctl.notifier != nil && req.PatientEmail != "" {
		var nerr error
		note, nerr = ctl.notifier.SendFromTemplate(ctx, notification.TemplateCounterSignature, map[string]string{
			"document_name": rec.Name,
			"document_ref":  rec.ID.String(),
			"patient_name":  req.Context.PatientName,
		}, req.PatientEmail)
		if nerr != nil {
			ctl.log.Warn().Err(nerr).
				Str("document_id", rec.ID.String()).
				Msg("counter-signature notification failed")
		}
	}
	return rec, note, nil
}

// RegenerationSeed prefills a fresh composition from a prior generated
// document. Finalizing the new composition creates an independent record;
// the source is never touched.
func (ctl *Controller) RegenerationSeed(ctx context.Context, sourceID uuid.UUID) (*Seed, error) {
	rec, err := ctl.registry.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if rec.Metadata.TemplateID == "" {
		return nil, invalidf("document %s was not generated from a template", sourceID)
	}
	return &Seed{
		TemplateID:  rec.Metadata.TemplateID,
		CustomNotes: rec.Metadata.CustomNotes,
	}, nil
}

// UploadSignedCopy ingests an externally signed artifact for an existing
// record: the bytes are stored and the record's artifact reference is
// replaced in place, marking it signed.
func (ctl *Controller) UploadSignedCopy(ctx context.Context, id uuid.UUID, data []byte, contentType string) (*DocumentRecord, error) {
	if len(data) == 0 {
		return nil, invalidf("signed copy is empty")
	}
	rec, err := ctl.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := ctl.now().UTC()
	path := blobstore.BuildPath(rec.PatientID, rec.Name, now)
	if err := ctl.blobs.Put(ctx, path, contentType, data, true); err != nil {
		return nil, err
	}
	if err := ctl.registry.ReplaceArtifact(ctx, id, path, now); err != nil {
		return nil, err
	}

	ctl.log.Info().
		Str("document_id", id.String()).
		Str("storage_ref", path).
		Msg("signed copy uploaded")
	return ctl.registry.Get(ctx, id)
}

// EmailDocument hands a stored document off to the notifier. Best-effort:
// the caller learns about delivery failure but the registry is untouched.
func (ctl *Controller) EmailDocument(ctx context.Context, id uuid.UUID, recipient string) error {
	if recipient == "" {
		return invalidf("recipient is required")
	}
	rec, err := ctl.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if ctl.notifier == nil {
		return invalidf("notifications are not configured")
	}
	_, err = ctl.notifier.SendFromTemplate(ctx, notification.TemplateDocumentDelivery, map[string]string{
		"document_name": rec.Name,
		"document_ref":  rec.StorageRef,
	}, recipient)
	if err != nil {
		ctl.log.Warn().Err(err).Str("document_id", id.String()).Msg("document delivery failed")
	}
	return err
}
