package inspect

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// Inspector checks uploads client-side before they are sent. PDFs must
// open and have at least one page; other kinds pass through.
type Inspector struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{logger: logger}
}

func (i *Inspector) Inspect(_ context.Context, file domain.Upload) (domain.FileInfo, error) {
	info := domain.FileInfo{Kind: domain.FileKindOf(file.FileName)}
	if info.Kind != domain.FileKindPDF {
		return info, nil
	}

	pages, err := countPages(file.Content)
	if err != nil {
		i.logger.Warn("pdf_unreadable", "file_name", file.FileName, "bytes", file.Size(), "error", err)
		return info, domain.Reject(domain.ErrUnreadableFile,
			"%s could not be read as a PDF. Please upload a valid PDF file.", file.FileName)
	}
	info.Pages = pages
	return info, nil
}

func countPages(content []byte) (pages int, err error) {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return 0, fmt.Errorf("missing PDF header")
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}
