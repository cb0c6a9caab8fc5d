package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type DocumentType string

const (
	DocApplicantsEvaluationSheet       DocumentType = "APPLICANTS_EVALUATION_SHEET"
	DocInformativeCopyOfTOR            DocumentType = "INFORMATIVE_COPY_OF_TOR"
	DocPSABirthCertificate             DocumentType = "PSA_AUTHENTICATED_BIRTH_CERTIFICATE"
	DocCertificateOfTransfer           DocumentType = "CERTIFICATE_OF_TRANSFER_CREDENTIAL"
	DocMarriageCertificate             DocumentType = "MARRIAGE_CERTIFICATE"
	DocCertificateOfEmployment         DocumentType = "CERTIFICATE_OF_EMPLOYMENT"
	DocEmployerCertifiedJobDescription DocumentType = "EMPLOYER_CERTIFIED_DETAILED_JOB_DESCRIPTION"
	DocEvidenceOfBusinessOwnership     DocumentType = "EVIDENCE_OF_BUSINESS_OWNERSHIP"
)

type Document struct {
	ID          string       `json:"id" validate:"required"`
	ApplicantID string       `json:"applicant_id,omitempty"`
	Type        DocumentType `json:"document_type"`
	FileName    string       `json:"file_name"`
	DownloadURL string       `json:"download_url,omitempty"`
	FileType    string       `json:"file_type,omitempty"`
	FileSize    int64        `json:"file_size,omitempty" validate:"gte=0"`
	UploadedAt  *time.Time   `json:"uploaded_at,omitempty"`
}

// Kind classifies the document by its file extension.
func (d Document) Kind() FileKind {
	return FileKindOf(d.FileName)
}

type FileKind string

const (
	FileKindPDF   FileKind = "PDF"
	FileKindDOC   FileKind = "DOC"
	FileKindDOCX  FileKind = "DOCX"
	FileKindImage FileKind = "IMAGE"
	FileKindOther FileKind = "OTHER"
)

func FileKindOf(filename string) FileKind {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf":
		return FileKindPDF
	case "doc":
		return FileKindDOC
	case "docx":
		return FileKindDOCX
	case "jpg", "jpeg", "png", "gif", "bmp":
		return FileKindImage
	default:
		return FileKindOther
	}
}

// Upload is a file picked for upload, held fully in memory.
type Upload struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (u Upload) Size() int64 {
	return int64(len(u.Content))
}

type DocumentTypeInfo struct {
	Type      DocumentType `yaml:"type" json:"type"`
	Label     string       `yaml:"label" json:"label"`
	Mandatory bool         `yaml:"mandatory" json:"mandatory"`
}

// DocumentCatalog is the ordered set of required document types.
type DocumentCatalog struct {
	entries []DocumentTypeInfo
}

func NewDocumentCatalog(entries []DocumentTypeInfo) DocumentCatalog {
	out := make([]DocumentTypeInfo, len(entries))
	copy(out, entries)
	return DocumentCatalog{entries: out}
}

func (c DocumentCatalog) Entries() []DocumentTypeInfo {
	out := make([]DocumentTypeInfo, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c DocumentCatalog) Types() []DocumentType {
	out := make([]DocumentType, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Type)
	}
	return out
}

func (c DocumentCatalog) Contains(t DocumentType) bool {
	_, ok := c.lookup(t)
	return ok
}

// Label returns the human label of t, or t itself when unknown.
func (c DocumentCatalog) Label(t DocumentType) string {
	if e, ok := c.lookup(t); ok && e.Label != "" {
		return e.Label
	}
	return string(t)
}

// Mandatory returns the first type flagged mandatory.
func (c DocumentCatalog) Mandatory() (DocumentType, bool) {
	for _, e := range c.entries {
		if e.Mandatory {
			return e.Type, true
		}
	}
	return "", false
}

func (c DocumentCatalog) lookup(t DocumentType) (DocumentTypeInfo, bool) {
	for _, e := range c.entries {
		if e.Type == t {
			return e, true
		}
	}
	return DocumentTypeInfo{}, false
}

// FileInfo is what a client-side inspection learned about an upload.
type FileInfo struct {
	Kind  FileKind `json:"kind"`
	Pages int      `json:"pages,omitempty"`
}

// CompletenessRow summarizes one applicant's required documents.
type CompletenessRow struct {
	ApplicantID      string
	Name             string
	Email            string
	Uploaded         int
	Missing          []DocumentTypeInfo
	MandatoryPresent bool
}
