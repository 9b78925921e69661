package domain

import "time"

const (
	BucketGallery  = "gallery"
	BucketBranding = "branding"
)

// Gallery categories offered to staff when uploading.
var GalleryCategories = []string{"Rooms", "Pool", "Lawn", "Night Vibes", "Bar Garden"}

const DefaultGalleryCategory = "Rooms"

// CategoryAll is the pseudo-category that disables filtering.
const CategoryAll = "All"

func IsGalleryCategory(c string) bool {
	for _, k := range GalleryCategories {
		if k == c {
			return true
		}
	}
	return false
}

type GalleryImage struct {
	ID          ID         `json:"id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	StoragePath string     `json:"storage_path"`
	URL         string     `json:"url"`
	SortOrder   int        `json:"sort_order"`
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobUploading JobStatus = "uploading"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

func (s JobStatus) Done() bool { return s == JobCompleted || s == JobError }

// UploadJob is one file of a bulk gallery upload.
type UploadJob struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Title    string        `json:"title"`
	Category string        `json:"category"`
	Progress int           `json:"progress"`
	Status   JobStatus     `json:"status"`
	Error    string        `json:"error,omitempty"`
	Image    *GalleryImage `json:"image,omitempty"`
}

// UploadBatch is a snapshot of a bulk upload and its jobs, in submission order.
type UploadBatch struct {
	ID         string      `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Jobs       []UploadJob `json:"jobs"`
}

func (b UploadBatch) Done() bool {
	for _, j := range b.Jobs {
		if !j.Status.Done() {
			return false
		}
	}
	return true
}

// Counts tallies jobs by status.
func (b UploadBatch) Counts() map[JobStatus]int {
	out := map[JobStatus]int{}
	for _, j := range b.Jobs {
		out[j.Status]++
	}
	return out
}
