package filetype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ErrUnsupported is returned for uploads that are not PDFs.
var ErrUnsupported = errors.New("unsupported file type")

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsPDF       bool
	IsImage     bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := classify(mtype.String(), mtype.Extension())
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// DetectBytes is Detect for in-memory content.
func (d *Detector) DetectBytes(data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	return classify(mtype.String(), mtype.Extension())
}

// RequirePDF returns ErrUnsupported unless the file is a PDF.
func (d *Detector) RequirePDF(filePath string) error {
	info, err := d.Detect(filePath)
	if err != nil {
		return err
	}
	if !info.IsPDF {
		return fmt.Errorf("%w: %s (%s)", ErrUnsupported, info.Description, info.MIMEType)
	}
	return nil
}

func classify(mimeType, ext string) *FileTypeInfo {
	info := &FileTypeInfo{MIMEType: mimeType, Extension: ext}
	switch {
	case mimeType == "application/pdf":
		info.IsPDF = true
		info.Description = "PDF document"
	case strings.HasPrefix(mimeType, "image/"):
		info.IsImage = true
		info.Description = "image"
	case strings.HasPrefix(mimeType, "text/"):
		info.Description = "text"
	default:
		info.Description = "unknown"
	}
	return info
}
