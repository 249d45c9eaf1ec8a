package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("unsupported document type")
var ErrEmptyDocument = errors.New("document has no text")

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt", ".md":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}

func extractText(path string, contentType commonModels.DocType, log *logger_i.Logger) ([]rawPage, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDF(path, log)
	case commonModels.DOCX:
		return extractDocument(path, log)
	case commonModels.TXT:
		return extractPlain(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}

// joinPages keeps page boundaries as paragraph breaks so the chunker prefers
// to cut there.
func joinPages(pages []rawPage) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}

// LoadDocument extracts the text of the file at path. name is what citations
// will show, the path itself is usually a temp upload.
func LoadDocument(path string, name string) (commonModels.Document, error) {
	log := logger_i.NewLogger("document_loader").With("name", name)

	docType := getDocType(path)
	if docType == commonModels.ERR {
		docType = getDocType(name)
	}

	pages, err := extractText(path, docType, log)
	if err != nil {
		return commonModels.Document{}, err
	}
	log.Debug("document extracted", "type", docType, "pages", len(pages))

	return NewDocument(name, joinPages(pages), docType)
}

func NewDocument(name string, text string, docType commonModels.DocType) (commonModels.Document, error) {
	if strings.TrimSpace(text) == "" {
		return commonModels.Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}
	return commonModels.Document{
		Id:          uuid.NewString(),
		Name:        name,
		Text:        text,
		UploadedAt:  time.Now().UTC(),
		ContentType: docType,
	}, nil
}
