package ingest

// Report counts what a Normalize call kept and dropped.
type Report struct {
	Documents        int // Envelopes read
	SkippedDocuments int // Envelopes without a usable extracted_at or markets list
	Markets          int // RawRecords emitted
	SkippedMarkets   int // Markets with a missing or non-integral id
	Contracts        int // Contracts kept
	V2Contracts      int // Contracts rewritten from contractId/contractName
	DroppedContracts int // Contracts without a usable id
	BadPrices        int // Price fields that could not be parsed and were nulled
	BadFields        int // Other fields replaced by their zero value
}

// Warnings returns the number of malformed pieces encountered.
func (r Report) Warnings() int {
	return r.SkippedDocuments + r.SkippedMarkets + r.DroppedContracts + r.BadPrices + r.BadFields
}

// Add accumulates other into r.
func (r *Report) Add(other Report) {
	r.Documents += other.Documents
	r.SkippedDocuments += other.SkippedDocuments
	r.Markets += other.Markets
	r.SkippedMarkets += other.SkippedMarkets
	r.Contracts += other.Contracts
	r.V2Contracts += other.V2Contracts
	r.DroppedContracts += other.DroppedContracts
	r.BadPrices += other.BadPrices
	r.BadFields += other.BadFields
}
