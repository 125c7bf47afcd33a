package domain

// ImagePath is the location of an image on the local filesystem
type ImagePath string

// ClassLabel is the class name predicted by the model
type ClassLabel string

// Results maps classified images to their predicted labels
type Results map[ImagePath]ClassLabel

// Outcome is the result of classifying a single image.
// Exactly one of Label and Err is meaningful.
type Outcome struct {
	Path  ImagePath  `json:"path"`
	Label ClassLabel `json:"label,omitempty"`
	Err   error      `json:"-"`

	// Raw is the undecoded inference response, kept for diagnostics
	Raw string `json:"-"`
}

// OK reports whether the image was classified
func (o Outcome) OK() bool {
	return o.Err == nil
}
