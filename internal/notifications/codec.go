package notifications

import (
	"encoding/json"

	"chatzam/internal/store"
)

func encodeRetry(rec retryRecord) (store.Document, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeRetry(doc store.Document) (retryRecord, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return retryRecord{}, err
	}
	var rec retryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return retryRecord{}, err
	}
	return rec, nil
}
