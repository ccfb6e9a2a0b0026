package documents

import (
	"testing"
	"time"
)

func TestTypeLifecycle(t *testing.T) {
	lifecycle := []Type{TypeReport, TypePrescription, TypeConsent}
	terminal := []Type{TypeLabResult, TypeImaging, TypeOther}

	for _, typ := range lifecycle {
		if !typ.Lifecycle() {
			t.Errorf("%s should carry a lifecycle", typ)
		}
	}
	for _, typ := range terminal {
		if typ.Lifecycle() {
			t.Errorf("%s should not carry a lifecycle", typ)
		}
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range []Type{TypeLabResult, TypeImaging, TypeReport, TypePrescription, TypeConsent, TypeOther} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("radiology").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestDocumentRecordStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		rec  DocumentRecord
		want Status
	}{
		{"unsigned without expiry", DocumentRecord{}, StatusPendingSignature},
		{"signed without expiry", DocumentRecord{IsSigned: true}, StatusSigned},
		{"signed and valid", DocumentRecord{IsSigned: true, ExpiresAt: &future}, StatusSigned},
		{"signed and expired", DocumentRecord{IsSigned: true, ExpiresAt: &past}, StatusExpired},
		{"unsigned and expired", DocumentRecord{ExpiresAt: &past}, StatusExpired},
		{"unsigned and valid", DocumentRecord{ExpiresAt: &future}, StatusPendingSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Status(now); got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}
