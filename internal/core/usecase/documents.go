package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
)

const DefaultMaxUploadBytes int64 = 15 * 1024 * 1024

// DocumentTracker holds an applicant's uploaded documents keyed by type.
type DocumentTracker struct {
	applicantID string
	catalog     domain.DocumentCatalog
	maxBytes    int64
	store       ports.DocumentStore
	inspector   ports.FileInspector
	events      ports.EventPublisher
	logger      *slog.Logger
	lifetime    context.Context

	mu    sync.Mutex
	files []domain.Document
	busy  inflight
}

type DocumentTrackerOptions struct {
	MaxUploadBytes int64
	Inspector      ports.FileInspector
	Events         ports.EventPublisher
	Logger         *slog.Logger
}

func NewDocumentTracker(
	lifetime context.Context,
	applicantID string,
	catalog domain.DocumentCatalog,
	store ports.DocumentStore,
	options DocumentTrackerOptions,
) *DocumentTracker {
	if lifetime == nil {
		lifetime = context.Background()
	}
	maxBytes := options.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	events := options.Events
	if events == nil {
		events = noopPublisher{}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentTracker{
		applicantID: applicantID,
		catalog:     catalog,
		maxBytes:    maxBytes,
		store:       store,
		inspector:   options.Inspector,
		events:      events,
		logger:      logger,
		lifetime:    lifetime,
	}
}

func (t *DocumentTracker) Load(ctx context.Context) error {
	callCtx, cancel := bindLifetime(ctx, t.lifetime)
	defer cancel()

	docs, err := t.store.ListDocuments(callCtx, t.applicantID)
	if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
		return fmt.Errorf("fetch uploaded documents: %w", err)
	}
	if err := alive(t.lifetime); err != nil {
		return err
	}

	t.mu.Lock()
	t.files = append([]domain.Document(nil), docs...)
	t.mu.Unlock()
	return nil
}

func (t *DocumentTracker) Files() []domain.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Document, len(t.files))
	copy(out, t.files)
	return out
}

func (t *DocumentTracker) Catalog() domain.DocumentCatalog {
	return t.catalog
}

// IsUploaded reports whether some document of docType is present.
func (t *DocumentTracker) IsUploaded(docType domain.DocumentType) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.findLocked(docType)
	return ok
}

// MissingRequired lists catalog entries with no uploaded document, in catalog order.
func (t *DocumentTracker) MissingRequired() []domain.DocumentTypeInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	missing := make([]domain.DocumentTypeInfo, 0)
	for _, entry := range t.catalog.Entries() {
		if _, ok := t.findLocked(entry.Type); !ok {
			missing = append(missing, entry)
		}
	}
	return missing
}

// MandatoryType is the document type that gates submission.
func (t *DocumentTracker) MandatoryType() (domain.DocumentType, bool) {
	return t.catalog.Mandatory()
}

// UploadOrReplace stores file as the document of docType. An existing
// document of that type keeps its identity and gets the new content.
func (t *DocumentTracker) UploadOrReplace(ctx context.Context, docType domain.DocumentType, file domain.Upload) (*domain.Document, error) {
	if err := t.validate(ctx, docType, file); err != nil {
		return nil, err
	}

	done, err := t.busy.begin("type:" + string(docType))
	if err != nil {
		return nil, err
	}
	defer done()

	t.mu.Lock()
	existing, replacing := t.findLocked(docType)
	t.mu.Unlock()

	callCtx, cancel := bindLifetime(ctx, t.lifetime)
	defer cancel()

	var saved *domain.Document
	if replacing {
		saved, err = t.store.ReplaceDocument(callCtx, existing.ID, file)
		if err != nil {
			err = fmt.Errorf("replace %s: %w", docType, err)
		}
	} else {
		saved, err = t.store.UploadDocument(callCtx, t.applicantID, docType, file)
		if err != nil {
			err = fmt.Errorf("upload %s: %w", docType, err)
		}
	}
	if err == nil && saved == nil {
		err = fmt.Errorf("upload %s: empty response", docType)
	}
	if err != nil {
		t.logger.Error("document_upload_failed",
			"applicant_id", t.applicantID,
			"document_type", string(docType),
			"replace", replacing,
			"error", err,
		)
		return nil, err
	}
	if err := alive(t.lifetime); err != nil {
		return nil, err
	}

	doc := *saved
	if replacing && doc.ID == "" {
		doc.ID = existing.ID
	}
	if doc.ApplicantID == "" {
		doc.ApplicantID = t.applicantID
	}
	if doc.FileName == "" {
		doc.FileName = file.FileName
	}
	if doc.FileSize == 0 {
		doc.FileSize = file.Size()
	}
	doc.Type = docType

	t.mu.Lock()
	next := make([]domain.Document, 0, len(t.files)+1)
	for _, f := range t.files {
		if f.Type != docType {
			next = append(next, f)
		}
	}
	t.files = append(next, doc)
	t.mu.Unlock()

	eventType := domain.EventDocumentUploaded
	if replacing {
		eventType = domain.EventDocumentReplaced
	}
	announce(ctx, t.events, t.logger, eventType, t.applicantID, doc.ID, map[string]string{
		"document_type": string(docType),
		"file_name":     doc.FileName,
	})
	t.logger.Info("document_saved",
		"applicant_id", t.applicantID,
		"document_type", string(docType),
		"document_id", doc.ID,
		"bytes", file.Size(),
		"replace", replacing,
	)
	return &doc, nil
}

func (t *DocumentTracker) validate(ctx context.Context, docType domain.DocumentType, file domain.Upload) error {
	if !t.catalog.Contains(docType) {
		return domain.Reject(domain.ErrUnknownDocumentType, "Unknown document type %q.", string(docType))
	}
	if strings.TrimSpace(file.FileName) == "" || file.Size() == 0 {
		return domain.Reject(domain.ErrEmptyFile, "No file selected for upload.")
	}
	if file.Size() > t.maxBytes {
		return TooLargeError(t.maxBytes)
	}
	if t.inspector == nil {
		return nil
	}
	info, err := t.inspector.Inspect(ctx, file)
	if err != nil {
		return err
	}
	t.logger.Debug("document_inspected",
		"document_type", string(docType),
		"kind", string(info.Kind),
		"pages", info.Pages,
	)
	return nil
}

func (t *DocumentTracker) findLocked(docType domain.DocumentType) (domain.Document, bool) {
	for _, f := range t.files {
		if f.Type == docType {
			return f, true
		}
	}
	return domain.Document{}, false
}

// TooLargeError is the rejection for an upload bigger than limit bytes.
func TooLargeError(limit int64) error {
	return domain.Reject(domain.ErrFileTooLarge, "File size exceeds the limit of %s", formatLimit(limit))
}

func formatLimit(bytes int64) string {
	const mib = 1024 * 1024
	if bytes%mib == 0 {
		return fmt.Sprintf("%dMB", bytes/mib)
	}
	return fmt.Sprintf("%d bytes", bytes)
}
