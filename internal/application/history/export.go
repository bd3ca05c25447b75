package history

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/doeshing/mindtrail/internal/domain"
)

// ExportJSONL writes one JSON object per line, in the given order.
func ExportJSONL(w io.Writer, records []domain.HistoryRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return errors.Wrapf(err, "encode record %s", rec.ID)
		}
	}
	return nil
}

// WriteJSON writes a single record as indented JSON.
func WriteJSON(w io.Writer, rec domain.HistoryRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrapf(enc.Encode(rec), "encode record %s", rec.ID)
}
