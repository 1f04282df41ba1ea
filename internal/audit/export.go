package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// WriteCSV renders timeline rows for spreadsheet download.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"at", "actor_id", "actor", "action", "entity", "entity_id"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		actorID := ""
		if row.ActorID > 0 {
			actorID = strconv.FormatInt(row.ActorID, 10)
		}
		if err := writer.Write([]string{
			row.At.UTC().Format(time.RFC3339),
			actorID,
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
		}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
