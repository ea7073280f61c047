package feedback

import (
	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/pkg/utils"
)

// Precision returns the fraction of indexable judged documents that are relevant.
// Documents that are not indexable count in neither numerator nor denominator.
// With no indexable documents precision is 0.
func Precision(judgments []*models.Judgment) (precision float64, relevant, indexable int) {
	for _, j := range judgments {
		if j.Document == nil || !j.Document.Indexable {
			continue
		}
		indexable++
		if j.Relevant {
			relevant++
		}
	}
	return utils.Ratio(relevant, indexable), relevant, indexable
}
