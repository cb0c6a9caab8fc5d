package portalapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

// flexID accepts identifiers sent as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

func firstID(ids ...flexID) string {
	for _, id := range ids {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// flexTime accepts epoch milliseconds or the ISO layouts the backend emits.
type flexTime struct {
	time.Time
	set bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000+0000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		f.Time, f.set = time.UnixMilli(ms).UTC(), true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time, f.set = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("timestamp %q: unknown layout", s)
}

func (f flexTime) ptr() *time.Time {
	if !f.set {
		return nil
	}
	t := f.Time
	return &t
}

type applicantRef struct {
	ApplicantID flexID `json:"applicantId"`
	ID          flexID `json:"id"`
}

type wireApplicant struct {
	ApplicantID flexID `json:"applicantId"`
	ID          flexID `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
}

func (w wireApplicant) toDomain() domain.Applicant {
	return domain.Applicant{
		ID:        firstID(w.ApplicantID, w.ID),
		FirstName: strings.TrimSpace(w.FirstName),
		LastName:  strings.TrimSpace(w.LastName),
		Email:     strings.TrimSpace(w.Email),
	}
}

// wireDepartment is either an object, a bare id, or a bare name.
type wireDepartment struct {
	ID   string
	Name string
}

func (d *wireDepartment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		return nil
	case data[0] == '{':
		var obj struct {
			DepartmentID   flexID `json:"departmentId"`
			ID             flexID `json:"id"`
			DepartmentName string `json:"departmentName"`
			Name           string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		d.ID = firstID(obj.DepartmentID, obj.ID)
		d.Name = firstString(obj.DepartmentName, obj.Name)
	case data[0] == '"':
		return json.Unmarshal(data, &d.Name)
	default:
		var id flexID
		if err := id.UnmarshalJSON(data); err != nil {
			return err
		}
		d.ID = string(id)
	}
	return nil
}

// wireMajor is a major given as a string or as an object with a name.
type wireMajor string

func (m *wireMajor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			MajorName string `json:"majorName"`
			Name      string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*m = wireMajor(firstString(obj.MajorName, obj.Name))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = wireMajor(strings.TrimSpace(s))
	return nil
}

type wireCourse struct {
	CourseID     flexID          `json:"courseId"`
	ID           flexID          `json:"id"`
	CourseName   string          `json:"courseName"`
	Name         string          `json:"name"`
	CourseCode   string          `json:"courseCode"`
	Code         string          `json:"code"`
	Department   *wireDepartment `json:"department"`
	DepartmentID flexID          `json:"departmentId"`
	Description  string          `json:"description"`
	Majors       []wireMajor     `json:"majors"`
}

func (w wireCourse) toDomain() domain.Course {
	id := firstID(w.CourseID, w.ID)
	var dept wireDepartment
	if w.Department != nil {
		dept = *w.Department
	}
	if dept.ID == "" {
		dept.ID = string(w.DepartmentID)
	}
	course := domain.Course{
		ID:          id,
		Name:        firstString(w.CourseName, w.Name),
		Code:        domain.CourseCode(firstString(w.CourseCode, w.Code), id),
		Department:  domain.DepartmentName(dept.ID, dept.Name),
		Description: strings.TrimSpace(w.Description),
	}
	for _, m := range w.Majors {
		if m != "" {
			course.Majors = append(course.Majors, string(m))
		}
	}
	return course
}

type courseRef struct {
	CourseID   flexID `json:"courseId"`
	ID         flexID `json:"id"`
	CourseName string `json:"courseName"`
}

type wirePreference struct {
	PreferenceID  flexID        `json:"preferenceId"`
	ID            flexID        `json:"id"`
	Applicant     *applicantRef `json:"applicant"`
	ApplicantID   flexID        `json:"applicantId"`
	Course        *courseRef    `json:"course"`
	CourseID      flexID        `json:"courseId"`
	PriorityOrder string        `json:"priorityOrder"`
	Priority      string        `json:"priority"`
	Status        string        `json:"status"`
}

func (w wirePreference) toDomain() domain.CoursePreference {
	pref := domain.CoursePreference{
		ID:          firstID(w.PreferenceID, w.ID),
		ApplicantID: string(w.ApplicantID),
		CourseID:    string(w.CourseID),
		Priority:    domain.PriorityOrder(strings.ToUpper(firstString(w.PriorityOrder, w.Priority))),
		Status:      domain.PreferenceStatus(strings.ToUpper(strings.TrimSpace(w.Status))),
	}
	if w.Applicant != nil && pref.ApplicantID == "" {
		pref.ApplicantID = firstID(w.Applicant.ApplicantID, w.Applicant.ID)
	}
	if w.Course != nil && pref.CourseID == "" {
		pref.CourseID = firstID(w.Course.CourseID, w.Course.ID)
	}
	return pref
}

type wireDocument struct {
	DocumentID   flexID        `json:"documentId"`
	ID           flexID        `json:"id"`
	Applicant    *applicantRef `json:"applicant"`
	ApplicantID  flexID        `json:"applicantId"`
	DocumentType string        `json:"documentType"`
	Type         string        `json:"type"`
	FileName     string        `json:"fileName"`
	Name         string        `json:"name"`
	DownloadURL  string        `json:"downloadUrl"`
	FileType     string        `json:"fileType"`
	FileSize     int64         `json:"fileSize"`
	Size         int64         `json:"size"`
	UploadDate   flexTime      `json:"uploadDate"`
	UploadedAt   flexTime      `json:"uploadedAt"`
}

func (w wireDocument) toDomain() domain.Document {
	doc := domain.Document{
		ID:          firstID(w.DocumentID, w.ID),
		ApplicantID: string(w.ApplicantID),
		Type:        domain.DocumentType(firstString(w.DocumentType, w.Type)),
		FileName:    firstString(w.FileName, w.Name),
		DownloadURL: strings.TrimSpace(w.DownloadURL),
		FileType:    strings.TrimSpace(w.FileType),
		FileSize:    w.FileSize,
		UploadedAt:  w.UploadDate.ptr(),
	}
	if doc.FileSize == 0 {
		doc.FileSize = w.Size
	}
	if doc.UploadedAt == nil {
		doc.UploadedAt = w.UploadedAt.ptr()
	}
	if w.Applicant != nil && doc.ApplicantID == "" {
		doc.ApplicantID = firstID(w.Applicant.ApplicantID, w.Applicant.ID)
	}
	return doc
}

type wireApplication struct {
	ApplicationID flexID        `json:"applicationId"`
	ID            flexID        `json:"id"`
	Applicant     *applicantRef `json:"applicant"`
	ApplicantID   flexID        `json:"applicantId"`
	Status        string        `json:"status"`
	DateSubmitted flexTime      `json:"dateSubmitted"`
	SubmittedAt   flexTime      `json:"submittedAt"`
}

func (w wireApplication) toDomain() domain.Application {
	app := domain.Application{
		ID:          firstID(w.ApplicationID, w.ID),
		ApplicantID: string(w.ApplicantID),
		Status:      domain.ApplicationStatus(strings.ToUpper(strings.TrimSpace(w.Status))),
		SubmittedAt: w.DateSubmitted.ptr(),
	}
	if app.SubmittedAt == nil {
		app.SubmittedAt = w.SubmittedAt.ptr()
	}
	if w.Applicant != nil && app.ApplicantID == "" {
		app.ApplicantID = firstID(w.Applicant.ApplicantID, w.Applicant.ID)
	}
	return app
}

// decodeOneOrMany accepts a JSON array or a single object.
func decodeOneOrMany[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if data[0] == '[' {
		var out []T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// checked validates a normalized value at the client boundary.
func checked[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		var zero T
		return zero, fmt.Errorf("invalid response payload: %w", err)
	}
	return value, nil
}
