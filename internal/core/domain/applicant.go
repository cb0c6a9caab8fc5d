package domain

import "strings"

type Role string

const (
	RoleApplicant    Role = "applicant"
	RoleEvaluator    Role = "evaluator"
	RoleProgramAdmin Role = "program_admin"
	RoleSystemAdmin  Role = "system_admin"
)

// Session is the acting identity remembered across runs.
type Session struct {
	Role        Role   `json:"role"`
	ApplicantID string `json:"applicant_id,omitempty"`
	EvaluatorID string `json:"evaluator_id,omitempty"`
	Email       string `json:"email,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
}

func (s Session) HasApplicant() bool {
	return strings.TrimSpace(s.ApplicantID) != ""
}

type Applicant struct {
	ID        string `json:"id" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"omitempty,email"`
}

func (a Applicant) Name() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Initials returns up to two upper-case initials of the applicant name.
func (a Applicant) Initials() string {
	var b strings.Builder
	count := 0
	for _, part := range strings.Fields(a.Name()) {
		b.WriteString(strings.ToUpper(string([]rune(part)[:1])))
		count++
		if count == 2 {
			break
		}
	}
	return b.String()
}

type Course struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Code        string   `json:"code"`
	Department  string   `json:"department"`
	Description string   `json:"description,omitempty"`
	Majors      []string `json:"majors,omitempty"`
}

const OtherProgramsDepartment = "Other Programs"

var departmentsByID = map[string]string{
	"1": "College of Computer Studies",
	"2": "College of Arts, Sciences, and Education",
	"3": "College of Management, Business and Accountancy",
	"4": "College of Engineering and Architecture",
}

// DepartmentName resolves the display name of a course department.
// An explicit name wins over the id lookup.
func DepartmentName(id, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if known, ok := departmentsByID[strings.TrimSpace(id)]; ok {
		return known
	}
	return OtherProgramsDepartment
}

// CourseCode returns code, or the catalog fallback derived from the course id.
func CourseCode(code, courseID string) string {
	if code = strings.TrimSpace(code); code != "" {
		return code
	}
	return "CRS-" + courseID
}
