package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

var testCatalog = domain.NewDocumentCatalog([]domain.DocumentTypeInfo{
	{Type: domain.DocApplicantsEvaluationSheet, Label: "Applicant's Evaluation Sheet"},
	{Type: domain.DocInformativeCopyOfTOR, Label: "Informative Copy of TOR", Mandatory: true},
	{Type: domain.DocPSABirthCertificate, Label: "PSA Birth Certificate"},
})

// backendFake is an in-memory admissions backend that counts calls.
type backendFake struct {
	mu sync.Mutex

	applicant    domain.Applicant
	courses      []domain.Course
	prefs        []domain.CoursePreference
	docs         []domain.Document
	applications []domain.Application

	listAppsErr error
	createErr   error
	writeErr    error

	nextID int
	calls  map[string]int

	// block, when set, is received from before a preference write returns.
	block chan struct{}
}

func newBackendFake() *backendFake {
	return &backendFake{
		applicant: domain.Applicant{ID: "7", FirstName: "Ana", LastName: "Cruz", Email: "ana@example.com"},
		courses: []domain.Course{
			{ID: "1", Name: "BS Computer Science", Code: "BSCS", Department: "College of Computer Studies"},
			{ID: "2", Name: "BS Accountancy", Code: "BSA", Department: "College of Management, Business and Accountancy"},
			{ID: "3", Name: "BS Civil Engineering", Code: "BSCE", Department: "College of Engineering and Architecture"},
		},
		calls: make(map[string]int),
	}
}

func (f *backendFake) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *backendFake) record(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.nextID++
	return f.nextID
}

func (f *backendFake) GetApplicant(_ context.Context, id string) (*domain.Applicant, error) {
	f.record("get_applicant")
	if id != f.applicant.ID {
		return nil, domain.WrapError(domain.ErrNotFound, "get applicant", errors.New(id))
	}
	a := f.applicant
	return &a, nil
}

func (f *backendFake) ListCourses(context.Context) ([]domain.Course, error) {
	f.record("list_courses")
	return append([]domain.Course(nil), f.courses...), nil
}

func (f *backendFake) ListPreferences(context.Context, string) ([]domain.CoursePreference, error) {
	f.record("list_preferences")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CoursePreference(nil), f.prefs...), nil
}

func (f *backendFake) CreatePreference(ctx context.Context, applicantID string, pref domain.CoursePreference) (*domain.CoursePreference, error) {
	id := f.record("create_preference")
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	pref.ID = fmt.Sprintf("p-%d", id)
	pref.ApplicantID = applicantID
	pref.Status = domain.PreferencePending
	f.mu.Lock()
	f.prefs = append(f.prefs, pref)
	f.mu.Unlock()
	return &pref, nil
}

func (f *backendFake) UpdatePreference(ctx context.Context, pref domain.CoursePreference) (*domain.CoursePreference, error) {
	f.record("update_preference")
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prefs {
		if f.prefs[i].ID == pref.ID {
			f.prefs[i] = pref
			return &pref, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "update preference", errors.New(pref.ID))
}

func (f *backendFake) wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *backendFake) ListDocuments(context.Context, string) ([]domain.Document, error) {
	f.record("list_documents")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Document(nil), f.docs...), nil
}

func (f *backendFake) UploadDocument(_ context.Context, applicantID string, docType domain.DocumentType, file domain.Upload) (*domain.Document, error) {
	id := f.record("upload_document")
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	doc := domain.Document{
		ID:          fmt.Sprintf("d-%d", id),
		ApplicantID: applicantID,
		Type:        docType,
		FileName:    file.FileName,
		FileSize:    file.Size(),
	}
	f.mu.Lock()
	f.docs = append(f.docs, doc)
	f.mu.Unlock()
	return &doc, nil
}

func (f *backendFake) ReplaceDocument(_ context.Context, documentID string, file domain.Upload) (*domain.Document, error) {
	f.record("replace_document")
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == documentID {
			f.docs[i].FileName = file.FileName
			f.docs[i].FileSize = file.Size()
			// The backend does not echo the document type on replace.
			out := f.docs[i]
			out.Type = ""
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "replace document", errors.New(documentID))
}

func (f *backendFake) ListApplications(context.Context, string) ([]domain.Application, error) {
	f.record("list_applications")
	if f.listAppsErr != nil {
		return nil, f.listAppsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Application(nil), f.applications...), nil
}

func (f *backendFake) CreateApplication(_ context.Context, applicantID string, status domain.ApplicationStatus) (*domain.Application, error) {
	id := f.record("create_application")
	if f.createErr != nil {
		return nil, f.createErr
	}
	app := domain.Application{ID: fmt.Sprintf("a-%d", id), ApplicantID: applicantID, Status: status}
	f.mu.Lock()
	f.applications = append(f.applications, app)
	f.mu.Unlock()
	return &app, nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.WorkflowEvent
	err    error
}

func (p *publisherFake) PublishWorkflowEvent(_ context.Context, event domain.WorkflowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *publisherFake) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func testDeps(backend *backendFake) Dependencies {
	return Dependencies{
		Backend: backend,
		Catalog: testCatalog,
	}
}

func upload(name string, size int) domain.Upload {
	content := make([]byte, size)
	for i := range content {
		content[i] = 'x'
	}
	return domain.Upload{FileName: name, ContentType: "application/pdf", Content: content}
}
