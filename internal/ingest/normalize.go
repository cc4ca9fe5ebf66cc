package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rickgao/predictit-etl/internal/model"
)

// ErrNoDocuments is returned when an object holds no JSON documents at all.
var ErrNoDocuments = errors.New("no documents in object")

type envelope struct {
	ExtractedAt json.RawMessage `json:"extracted_at"`
	Source      string          `json:"source"`
	Data        struct {
		Markets []json.RawMessage `json:"markets"`
	} `json:"data"`
}

type wireMarket struct {
	ID        json.RawMessage   `json:"id"`
	Name      json.RawMessage   `json:"name"`
	ShortName json.RawMessage   `json:"shortName"`
	URL       json.RawMessage   `json:"url"`
	Status    json.RawMessage   `json:"status"`
	Contracts []json.RawMessage `json:"contracts"`
}

// Normalizer converts landed objects into RawRecords.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. A nil logger uses slog.Default().
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize parses one landed object. The returned error is non-nil only when
// the object is not JSON at all; malformed content inside is skipped and
// counted in the Report.
func (n *Normalizer) Normalize(data []byte, sourceKey string) ([]model.RawRecord, Report, error) {
	var rep Report

	docs, err := splitDocuments(data)
	if err != nil {
		return nil, rep, fmt.Errorf("split documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, rep, ErrNoDocuments
	}

	var records []model.RawRecord
	for i, doc := range docs {
		rep.Documents++

		var env envelope
		if err := json.Unmarshal(doc, &env); err != nil {
			rep.SkippedDocuments++
			n.logger.Warn("skipping document", "key", sourceKey, "index", i, "error", err)
			continue
		}

		tsText, err := parseString(env.ExtractedAt)
		if err != nil {
			rep.SkippedDocuments++
			n.logger.Warn("skipping document", "key", sourceKey, "index", i, "error", fmt.Errorf("extracted_at: %w", err))
			continue
		}
		extractedAt, err := ParseTimestamp(tsText)
		if err != nil {
			rep.SkippedDocuments++
			n.logger.Warn("skipping document", "key", sourceKey, "index", i, "error", err)
			continue
		}

		if env.Data.Markets == nil {
			rep.SkippedDocuments++
			n.logger.Warn("skipping document", "key", sourceKey, "index", i, "error", "data.markets missing")
			continue
		}

		for _, raw := range env.Data.Markets {
			rec, ok := n.normalizeMarket(raw, &rep)
			if !ok {
				continue
			}
			rec.ExtractedAt = extractedAt
			rec.SourceKey = sourceKey
			records = append(records, rec)
			rep.Markets++
		}
	}

	return records, rep, nil
}

func (n *Normalizer) normalizeMarket(raw json.RawMessage, rep *Report) (model.RawRecord, bool) {
	var m wireMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		rep.SkippedMarkets++
		n.logger.Warn("skipping market", "error", fmt.Errorf("decode market: %w", err))
		return model.RawRecord{}, false
	}

	id, err := ParseID(m.ID)
	if err != nil {
		rep.SkippedMarkets++
		n.logger.Warn("skipping market", "id", string(m.ID), "error", err)
		return model.RawRecord{}, false
	}

	rec := model.RawRecord{MarketID: id}

	for _, f := range []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"name", m.Name, &rec.Name},
		{"shortName", m.ShortName, &rec.ShortName},
		{"url", m.URL, &rec.URL},
		{"status", m.Status, &rec.Status},
	} {
		v, err := parseString(f.raw)
		if err != nil {
			rep.BadFields++
			n.logger.Debug("bad market field", "market_id", id, "field", f.name, "error", err)
			continue
		}
		*f.dst = v
	}
	if rec.Status == "" {
		rec.Status = model.StatusUnknown
	}

	rec.Contracts = make([]model.ContractRecord, 0, len(m.Contracts))
	for _, rc := range m.Contracts {
		c, ok := n.adaptContract(rc, id, rep)
		if !ok {
			continue
		}
		rec.Contracts = append(rec.Contracts, c)
		rep.Contracts++
	}

	return rec, true
}

// splitDocuments returns the top-level documents of data: the elements of a
// JSON array, or each value of a whitespace-separated stream.
func splitDocuments(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var docs []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var doc json.RawMessage
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}
