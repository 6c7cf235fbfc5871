package dto

// DocumentPlaceholderRequest records a free-text value in a document slot.
type DocumentPlaceholderRequest struct {
	Slot  string `json:"slot" validate:"required"`
	Value string `json:"value" validate:"required,max=255"`
}

// DocumentUpload is a file received for a document slot.
type DocumentUpload struct {
	Slot        string
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// DocumentLinkRequest asks for a signed download link to one slot of a bundle.
type DocumentLinkRequest struct {
	Slot string `json:"slot" validate:"required"`
}
