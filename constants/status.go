package constants

// JobStatus is the outcome recorded on a job row.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusOK      JobStatus = "ok"
	JobStatusSkipped JobStatus = "skipped" // unsupported type or no template matched
	JobStatusFailed  JobStatus = "failed"
)

// DocumentStatus is the state recorded on a document row.
type DocumentStatus string

const (
	DocumentStatusIndexed DocumentStatus = "indexed" // discovered by the indexer
	DocumentStatusOK      DocumentStatus = "ok"
	DocumentStatusSkipped DocumentStatus = "skipped"
	DocumentStatusFailed  DocumentStatus = "failed"
)

// Source tells where a processed file came from.
type Source string

const (
	SourceIngest Source = "ingest"
	SourceUpload Source = "upload"
)

// Location is the managed tree a document lives in.
type Location string

const (
	LocationLibrary Location = "library"
	LocationFailed  Location = "failed"
)

// Extraction methods reported by the text extractor.
const (
	MethodText = "text"
	MethodOCR  = "ocr"
	MethodNone = "none"
)
