package documents

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Manelgon/doctoria/internal/platform/render"
)

// Template is one entry in the clinic's document catalog. Section bodies
// carry {{token}} placeholders that Bind resolves against a BindContext.
// Every template renders with the two signature slots (doctor, patient).
type Template struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        Type              `json:"type"`
	Sections    []TemplateSection `json:"sections"`
}

type TemplateSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Catalog holds the static set of document templates.
type Catalog struct {
	templates []Template
	byID      map[string]*Template
}

// NewCatalog builds the clinic's template catalog.
func NewCatalog() *Catalog {
	templates := []Template{
		{
			ID:          "informe-evolucion",
			Name:        "Informe de Evolución Clínica",
			Description: "Informe periódico sobre la evolución del paciente.",
			Type:        TypeReport,
			Sections: []TemplateSection{
				{
					Heading: "Datos del paciente",
					Body:    "Paciente: {{patient_name}} {{patient_last_names}}\nCIP: {{patient_identifier}}\nDNI: {{patient_dni}}\nFecha: {{today}}",
				},
				{
					Heading: "Evolución",
					Body:    "El/la paciente {{patient_name}} {{patient_last_names}} ha sido valorado/a por el/la Dr./Dra. {{doctor_name}} {{doctor_last_names}} con fecha {{today}}.\n\nObservaciones: {{custom_notes}}",
				},
			},
		},
		{
			ID:          "consentimiento-informado",
			Name:        "Consentimiento Informado",
			Description: "Autorización del paciente para un procedimiento.",
			Type:        TypeConsent,
			Sections: []TemplateSection{
				{
					Heading: "Identificación",
					Body:    "D./Dña. {{patient_name}} {{patient_last_names}}, con DNI {{patient_dni}} y CIP {{patient_identifier}}.",
				},
				{
					Heading: "Declaración",
					Body:    "Declaro haber sido informado/a por el/la Dr./Dra. {{doctor_name}} {{doctor_last_names}} sobre el procedimiento propuesto, sus riesgos y alternativas, y otorgo mi consentimiento con fecha {{today}}.\n\nObservaciones: {{custom_notes}}",
				},
			},
		},
		{
			ID:          "receta-medica",
			Name:        "Receta Médica",
			Description: "Prescripción de tratamiento.",
			Type:        TypePrescription,
			Sections: []TemplateSection{
				{
					Heading: "Datos del paciente",
					Body:    "Paciente: {{patient_name}} {{patient_last_names}}\nCIP: {{patient_identifier}}\nFecha de prescripción: {{today}}",
				},
				{
					Heading: "Prescripción",
					Body:    "Prescrito por el/la Dr./Dra. {{doctor_name}} {{doctor_last_names}}.\n\n{{custom_notes}}",
				},
			},
		},
		{
			ID:          "informe-alta",
			Name:        "Informe de Alta",
			Description: "Informe emitido al alta del paciente.",
			Type:        TypeReport,
			Sections: []TemplateSection{
				{
					Heading: "Datos del paciente",
					Body:    "Paciente: {{patient_name}} {{patient_last_names}}\nCIP: {{patient_identifier}}\nDNI: {{patient_dni}}\nFecha de alta: {{today}}",
				},
				{
					Heading: "Resumen clínico",
					Body:    "Se procede al alta del/de la paciente por indicación del/de la Dr./Dra. {{doctor_name}} {{doctor_last_names}}.\n\nRecomendaciones: {{custom_notes}}",
				},
			},
		},
	}

	c := &Catalog{templates: templates, byID: make(map[string]*Template, len(templates))}
	for i := range c.templates {
		c.byID[c.templates[i].ID] = &c.templates[i]
	}
	return c
}

// List returns the catalog templates in their fixed order.
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (*Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// BindContext supplies the values that resolve a template's placeholders.
// Today is injected by the caller so binding stays deterministic.
type BindContext struct {
	PatientName       string    `json:"patient_name"`
	PatientLastNames  string    `json:"patient_last_names"`
	PatientIdentifier string    `json:"patient_identifier"`
	PatientDNI        string    `json:"patient_dni"`
	DoctorName        string    `json:"doctor_name"`
	DoctorLastNames   string    `json:"doctor_last_names"`
	CustomNotes       string    `json:"custom_notes"`
	Today             time.Time `json:"today"`
}

func (b BindContext) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.PatientName, validation.Required),
		validation.Field(&b.PatientLastNames, validation.Required),
		validation.Field(&b.PatientIdentifier, validation.Required),
		validation.Field(&b.DoctorName, validation.Required),
		validation.Field(&b.DoctorLastNames, validation.Required),
	)
}

// NotesFallback replaces an empty custom-notes slot so bound documents never
// carry an unresolved or blank observations field.
const NotesFallback = "Sin observaciones adicionales."

var tokenPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// Bind resolves a template's placeholders against ctx and produces the
// renderer's layout model. Binding is pure: same template and context yield
// the same document. No unresolved {{...}} token survives a successful bind.
func (c *Catalog) Bind(templateID string, ctx BindContext) (*render.Document, error) {
	tpl, ok := c.Get(templateID)
	if !ok {
		return nil, invalidf("unknown template %q", templateID)
	}
	if err := ctx.Validate(); err != nil {
		return nil, &ValidationError{Msg: "invalid bind context", Err: err}
	}

	notes := ctx.CustomNotes
	if strings.TrimSpace(notes) == "" {
		notes = NotesFallback
	}
	values := map[string]string{
		"patient_name":       ctx.PatientName,
		"patient_last_names": ctx.PatientLastNames,
		"patient_identifier": ctx.PatientIdentifier,
		"patient_dni":        ctx.PatientDNI,
		"doctor_name":        ctx.DoctorName,
		"doctor_last_names":  ctx.DoctorLastNames,
		"custom_notes":       notes,
		"today":              ctx.Today.Format("02/01/2006"),
	}

	var unknown []string
	resolve := func(s string) string {
		return tokenPattern.ReplaceAllStringFunc(s, func(m string) string {
			key := tokenPattern.FindStringSubmatch(m)[1]
			v, ok := values[key]
			if !ok {
				unknown = append(unknown, key)
				return m
			}
			return v
		})
	}

	doc := &render.Document{
		Title:     tpl.Name,
		Sections:  make([]render.Section, 0, len(tpl.Sections)),
		CreatedAt: ctx.Today,
	}
	for _, s := range tpl.Sections {
		doc.Sections = append(doc.Sections, render.Section{
			Heading: resolve(s.Heading),
			Body:    resolve(s.Body),
		})
	}
	if len(unknown) > 0 {
		return nil, invalidf("template %q has unresolved placeholders: %s", templateID, strings.Join(unknown, ", "))
	}
	return doc, nil
}
