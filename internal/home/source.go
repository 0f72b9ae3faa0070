package home

import (
	"sort"

	"github.com/amaumene/catalogarr/internal/models"
)

// SourcePriority is the display preference when an item was seen by several sources
var SourcePriority = []models.SourceType{models.SourceXtream, models.SourceTelegram, models.SourceIo}

// SelectSource picks the source an item is displayed and opened with.
//
// The first type in SourcePriority present in sources is chosen, and within a type
// the earliest-added reference. An empty or unusable set yields SourceUnknown and a
// nil reference. The result is always one of the three ingestion sources or
// SourceUnknown, whichever shelf asks.
func SelectSource(sources []models.MediaSourceRef) (models.SourceType, *models.MediaSourceRef) {
	if len(sources) == 0 {
		return models.SourceUnknown, nil
	}

	byType := make(map[models.SourceType][]models.MediaSourceRef, len(SourcePriority))
	for _, ref := range sources {
		if !ref.SourceType.Valid() {
			continue
		}
		byType[ref.SourceType] = append(byType[ref.SourceType], ref)
	}

	for _, st := range SourcePriority {
		if refs, ok := byType[st]; ok {
			return st, earliest(refs)
		}
	}
	return models.SourceUnknown, nil
}

func earliest(refs []models.MediaSourceRef) *models.MediaSourceRef {
	sorted := append([]models.MediaSourceRef(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].AddedAt.Equal(sorted[j].AddedAt) {
			return sorted[i].AddedAt.Before(sorted[j].AddedAt)
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})
	return &sorted[0]
}
