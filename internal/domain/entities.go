package domain

// Chunk is a word-bounded slice of a document's extracted text.
type Chunk struct {
	Text          string `json:"text"`
	ChunkIndex    int    `json:"chunk_index"`
	EstimatedPage int    `json:"estimated_page"`
	WordCount     int    `json:"word_count"`
	FileID        int64  `json:"file_id,omitempty"`
	ProjectID     int64  `json:"project_id,omitempty"`
}

// Entry is one record of a project's vector index.
type Entry struct {
	FileID        int64
	ChunkIndex    int
	EstimatedPage int
	WordCount     int
	Text          string
	Vector        []float32
}

type ScoredEntry struct {
	Entry Entry
	Score float64
}

// Source is a citation returned alongside a generated answer.
type Source struct {
	Content    string  `json:"content"`
	Page       int     `json:"page"`
	FileID     int64   `json:"file_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

type ProjectStats struct {
	TotalDocuments int     `json:"total_documents"`
	TotalChunks    int     `json:"total_chunks"`
	FileIDs        []int64 `json:"file_ids"`
}

// ProcessingStatus mirrors the document status owned by the metadata collaborator.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// FileJob describes one uploaded file to extract, chunk and index.
// ProjectID == 0 means the file is not attached to a project and is not indexed.
type FileJob struct {
	FileID    int64  `json:"file_id"`
	ProjectID int64  `json:"project_id"`
	Path      string `json:"path"`
	Data      []byte `json:"-"`
}

type ProcessResult struct {
	FileID      int64   `json:"file_id"`
	ProjectID   int64   `json:"project_id"`
	TotalChunks int     `json:"total_chunks"`
	TotalWords  int     `json:"total_words"`
	Indexed     bool    `json:"indexed"`
	Chunks      []Chunk `json:"-"`
}

// JobState is the tracked state of a background indexing job.
type JobState struct {
	ID        string           `json:"id"`
	FileID    int64            `json:"file_id"`
	ProjectID int64            `json:"project_id"`
	Status    ProcessingStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Result    *ProcessResult   `json:"result,omitempty"`
}
