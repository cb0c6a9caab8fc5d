package portalapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, handler http.Handler, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(server.URL+"/", opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestGetApplicantNormalizesBackendShape(t *testing.T) {
	var requestID string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/applicants/7" {
			http.NotFound(w, r)
			return
		}
		requestID = r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`{"applicantId":7,"firstName":" Ana ","lastName":"Cruz","email":"ana@example.com","password":"x"}`))
	}), Options{})

	applicant, err := client.GetApplicant(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetApplicant() error = %v", err)
	}
	if applicant.ID != "7" || applicant.Name() != "Ana Cruz" || applicant.Email != "ana@example.com" {
		t.Fatalf("unexpected applicant %+v", applicant)
	}
	if requestID == "" {
		t.Fatalf("expected X-Request-Id header")
	}
}

func TestListCoursesResolvesDepartmentAndCode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"courseId":1,"courseName":"BS Computer Science","courseCode":"BSCS","department":{"departmentId":1}},
			{"courseId":"9","courseName":"BS Tourism","department":{"departmentId":12}},
			{"id":4,"name":"BS Civil Engineering","department":{"departmentId":4,"departmentName":"CEA"},"majors":[{"majorName":"Structural"},"Geotechnical"]},
			{"courseId":5}
		]`))
	}), Options{})

	courses, err := client.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses() error = %v", err)
	}
	if len(courses) != 3 {
		t.Fatalf("expected the nameless course to be skipped, got %+v", courses)
	}
	if courses[0].Department != "College of Computer Studies" || courses[0].Code != "BSCS" {
		t.Fatalf("unexpected first course %+v", courses[0])
	}
	if courses[1].Department != domain.OtherProgramsDepartment || courses[1].Code != "CRS-9" {
		t.Fatalf("unexpected fallback course %+v", courses[1])
	}
	if courses[2].ID != "4" || courses[2].Department != "CEA" || len(courses[2].Majors) != 2 {
		t.Fatalf("unexpected aliased course %+v", courses[2])
	}
}

func TestListApplicationsNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "No application found", http.StatusNotFound)
	}), Options{})

	_, err := client.ListApplications(context.Background(), "7")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListApplicationsAcceptsSingleObject(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"applicationId":3,"status":"pending","dateSubmitted":1718000000000}`))
	}), Options{})

	apps, err := client.ListApplications(context.Background(), "7")
	if err != nil {
		t.Fatalf("ListApplications() error = %v", err)
	}
	if len(apps) != 1 || apps[0].ID != "3" || apps[0].Status != domain.ApplicationPending || apps[0].SubmittedAt == nil {
		t.Fatalf("unexpected applications %+v", apps)
	}
	if apps[0].ApplicantID != "7" {
		t.Fatalf("expected applicant id filled in, got %q", apps[0].ApplicantID)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: "", kind: domain.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: "", kind: domain.ErrUnauthorized},
		{name: "bad request keeps plain body", status: http.StatusBadRequest, body: "One or more files exceed the limit of 15MB", kind: domain.ErrServer, message: "One or more files exceed the limit of 15MB"},
		{name: "conflict keeps json message", status: http.StatusConflict, body: `{"status":409,"error":"Conflict","message":"Application already exists"}`, kind: domain.ErrServer, message: "Application already exists"},
		{name: "server error is temporary", status: http.StatusInternalServerError, body: `{"message":"database down"}`, kind: domain.ErrTemporary, message: "database down"},
		{name: "throttled is temporary", status: http.StatusTooManyRequests, body: "", kind: domain.ErrTemporary},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}), Options{})

			_, err := client.CreateApplication(context.Background(), "7", domain.ApplicationPending)
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			msg, _ := domain.MessageOf(err)
			if msg != tc.message {
				t.Fatalf("expected server message %q, got %q", tc.message, msg)
			}
		})
	}
}

func TestNetworkFailureIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := New(url, Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = client.ListCourses(context.Background())
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestCreatePreferenceSendsCourseAndPriority(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/preferences/applicant/7" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"preferenceId":15,"course":{"courseId":2,"courseName":"BS Accountancy"},"priorityOrder":"FIRST","status":"PENDING"}`))
	}), Options{})

	pref, err := client.CreatePreference(context.Background(), "7", domain.CoursePreference{CourseID: "2", Priority: domain.PriorityFirst})
	if err != nil {
		t.Fatalf("CreatePreference() error = %v", err)
	}
	course, _ := payload["course"].(map[string]any)
	if course["courseId"] != float64(2) || payload["priorityOrder"] != "FIRST" {
		t.Fatalf("unexpected request payload %v", payload)
	}
	if pref.ID != "15" || pref.CourseID != "2" || pref.ApplicantID != "7" || pref.Status != domain.PreferencePending {
		t.Fatalf("unexpected preference %+v", pref)
	}
}

func TestUpdatePreferenceUsesPreferencePath(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/preferences/15" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"preferenceId":15,"priorityOrder":"SECOND"}`))
	}), Options{})

	pref, err := client.UpdatePreference(context.Background(), domain.CoursePreference{
		ID: "15", ApplicantID: "7", CourseID: "3", Priority: domain.PrioritySecond, Status: domain.PreferenceReviewed,
	})
	if err != nil {
		t.Fatalf("UpdatePreference() error = %v", err)
	}
	if payload["status"] != "REVIEWED" || payload["preferenceId"] != float64(15) {
		t.Fatalf("unexpected request payload %v", payload)
	}
	if pref.CourseID != "3" || pref.Status != domain.PreferenceReviewed {
		t.Fatalf("expected omitted fields filled from the request, got %+v", pref)
	}
}

func TestUploadDocumentSendsMultipartForm(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/documents/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("applicantId") != "7" || r.FormValue("documentType") != "INFORMATIVE_COPY_OF_TOR" {
			t.Fatalf("unexpected form values %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("files")
		if err != nil {
			t.Fatalf("missing files part: %v", err)
		}
		content, _ := io.ReadAll(file)
		if header.Filename != "tor.pdf" || string(content) != "%PDF-1.4" {
			t.Fatalf("unexpected file %s %q", header.Filename, content)
		}
		_, _ = w.Write([]byte(`{"documentId":21,"fileName":"tor.pdf","downloadUrl":"http://backend/api/documents/21","fileSize":8}`))
	}), Options{})

	doc, err := client.UploadDocument(context.Background(), "7", domain.DocInformativeCopyOfTOR, domain.Upload{
		FileName: "tor.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	if doc.ID != "21" || doc.Type != domain.DocInformativeCopyOfTOR || doc.ApplicantID != "7" || doc.DownloadURL == "" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestReplaceDocumentKeepsIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/documents/21" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Fatalf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"fileName":"tor-v2.pdf","uploadDate":"2025-03-01T10:00:00.000+00:00"}`))
	}), Options{})

	doc, err := client.ReplaceDocument(context.Background(), "21", domain.Upload{FileName: "tor-v2.pdf", Content: []byte("x")})
	if err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}
	if doc.ID != "21" || doc.FileName != "tor-v2.pdf" || doc.UploadedAt == nil {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestWritesAreNeverRetried(t *testing.T) {
	var reads, writes atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reads.Add(1)
		} else {
			writes.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}), Options{Resilience: resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	}})

	if _, err := client.CreateApplication(context.Background(), "7", domain.ApplicationPending); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if _, err := client.ListApplications(context.Background(), "7"); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if writes.Load() != 1 {
		t.Fatalf("expected a single write attempt, got %d", writes.Load())
	}
	if reads.Load() != 3 {
		t.Fatalf("expected configured read retries, got %d", reads.Load())
	}
}

func TestPathParametersAreEscaped(t *testing.T) {
	var requestURI string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestURI = r.RequestURI
		_, _ = w.Write([]byte(`[]`))
	}), Options{})

	if _, err := client.ListDocuments(context.Background(), "a/b"); err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if requestURI != "/api/documents/applicant/a%2Fb" {
		t.Fatalf("unexpected request uri %q", requestURI)
	}
}

func TestContractDriftIsReportedNotFatal(t *testing.T) {
	var drifted []string
	checker, err := NewContractChecker(nil, func(operation string) { drifted = append(drifted, operation) })
	if err != nil {
		t.Fatalf("NewContractChecker() error = %v", err)
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"courseId":"C-1","courseName":"BS Nursing"}]`))
	}), Options{Contract: checker})

	courses, err := client.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses() error = %v", err)
	}
	if len(courses) != 1 || courses[0].ID != "C-1" {
		t.Fatalf("unexpected courses %+v", courses)
	}
	if len(drifted) != 1 || drifted[0] != "list_courses" {
		t.Fatalf("expected one drift report, got %v", drifted)
	}
}

func TestContractAcceptsDocumentedShape(t *testing.T) {
	checker, err := NewContractChecker(nil, nil)
	if err != nil {
		t.Fatalf("NewContractChecker() error = %v", err)
	}
	body := []byte(`[{"preferenceId":1,"priorityOrder":"FIRST","status":"PENDING","course":{"courseId":2}}]`)
	if err := checker.Check("list_preferences", http.MethodGet, "/api/preferences/applicant/{id}", http.StatusOK, body); err != nil {
		t.Fatalf("expected documented shape to pass, got %v", err)
	}
}
