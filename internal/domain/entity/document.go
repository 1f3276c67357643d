package entity

// Document is an uploaded supporting file tracked inside a wizard record.
// ID is only used by the onboarding flow, where it names the required document slot.
type Document struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mimeType"`
	UploadState string `json:"uploadState"`
	Progress    int    `json:"progress"`
}

// IsUploaded returns true once the transfer has completed
func (d Document) IsUploaded() bool {
	return d.UploadState == UploadStateUploaded
}

// FileDescriptor describes a file offered to the upload collaborator
type FileDescriptor struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}
