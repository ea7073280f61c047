package feedback

import (
	"testing"

	"github.com/hyperjump/refine/internal/models"
)

func judged(indexable, relevant bool) *models.Judgment {
	return &models.Judgment{Document: &models.Document{Indexable: indexable}, Relevant: relevant}
}

func TestPrecision(t *testing.T) {
	tests := []struct {
		name          string
		judgments     []*models.Judgment
		wantPrecision float64
		wantRelevant  int
		wantIndexable int
	}{
		{"no judgments", nil, 0, 0, 0},
		{"nothing indexable", []*models.Judgment{judged(false, true), judged(false, false)}, 0, 0, 0},
		{"all relevant", []*models.Judgment{judged(true, true), judged(true, true)}, 1, 2, 2},
		{"half", []*models.Judgment{judged(true, true), judged(true, false)}, 0.5, 1, 2},
		{"excluded relevant ignored", []*models.Judgment{judged(true, false), judged(false, true), judged(true, true), judged(true, false)}, 1.0 / 3, 1, 3},
		{"nil document ignored", []*models.Judgment{{Relevant: true}, judged(true, true)}, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rel, idx := Precision(tt.judgments)
			if p != tt.wantPrecision || rel != tt.wantRelevant || idx != tt.wantIndexable {
				t.Errorf("Precision = (%v, %d, %d), want (%v, %d, %d)",
					p, rel, idx, tt.wantPrecision, tt.wantRelevant, tt.wantIndexable)
			}
		})
	}
}
