package documents

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func fullBindContext() BindContext {
	return BindContext{
		PatientName:       "Elena",
		PatientLastNames:  "García Ruiz",
		PatientIdentifier: "CIP-0042",
		PatientDNI:        "12345678Z",
		DoctorName:        "Marta",
		DoctorLastNames:   "Sanz Vidal",
		CustomNotes:       "Evolución favorable.",
		Today:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBindResolvesAllTokens(t *testing.T) {
	catalog := NewCatalog()
	for _, tpl := range catalog.List() {
		t.Run(tpl.ID, func(t *testing.T) {
			doc, err := catalog.Bind(tpl.ID, fullBindContext())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Title != tpl.Name {
				t.Errorf("title = %q, want %q", doc.Title, tpl.Name)
			}
			for _, s := range doc.Sections {
				if strings.Contains(s.Heading, "{{") || strings.Contains(s.Body, "{{") {
					t.Errorf("unresolved placeholder in section %q", s.Heading)
				}
			}
		})
	}
}

func TestBindDeterministic(t *testing.T) {
	catalog := NewCatalog()
	ctx := fullBindContext()

	a, err := catalog.Bind("informe-evolucion", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := catalog.Bind("informe-evolucion", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same template and context should bind identically")
	}
}

func TestBindEmptyNotesFallback(t *testing.T) {
	catalog := NewCatalog()
	ctx := fullBindContext()
	ctx.CustomNotes = "   "

	doc, err := catalog.Bind("informe-evolucion", ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var found bool
	for _, s := range doc.Sections {
		if strings.Contains(s.Body, NotesFallback) {
			found = true
		}
	}
	if !found {
		t.Error("blank notes should bind to the fallback text")
	}
}

func TestBindUnknownTemplate(t *testing.T) {
	catalog := NewCatalog()
	_, err := catalog.Bind("no-such-template", fullBindContext())
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestBindMissingRequiredContext(t *testing.T) {
	catalog := NewCatalog()
	ctx := fullBindContext()
	ctx.PatientName = ""

	_, err := catalog.Bind("informe-evolucion", ctx)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCatalogListAndGet(t *testing.T) {
	catalog := NewCatalog()
	list := catalog.List()
	if len(list) != 4 {
		t.Fatalf("catalog size = %d, want 4", len(list))
	}
	if list[0].ID != "informe-evolucion" {
		t.Errorf("first template = %q", list[0].ID)
	}
	for _, tpl := range list {
		got, ok := catalog.Get(tpl.ID)
		if !ok || got.Name != tpl.Name {
			t.Errorf("Get(%q) mismatch", tpl.ID)
		}
		if !tpl.Type.Lifecycle() {
			t.Errorf("template %q should have a lifecycle type, got %s", tpl.ID, tpl.Type)
		}
	}
	if _, ok := catalog.Get("missing"); ok {
		t.Error("Get should miss on unknown id")
	}
}
