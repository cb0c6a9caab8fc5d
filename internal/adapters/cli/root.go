// Package cli is the applicant's terminal screen built on cobra.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/ports"
	"github.com/kirillkom/eteeap-applicant-client/internal/core/usecase"
	"github.com/kirillkom/eteeap-applicant-client/internal/infrastructure/report"
)

// Env holds the collaborators every command runs against.
type Env struct {
	Workflow     ports.ApplicantWorkflow
	Reporter     ports.CompletenessReporter
	Sessions     ports.SessionStore
	Catalog      domain.DocumentCatalog
	ReadFile     func(path string) ([]byte, error)
	CreateReport func(path string) (io.WriteCloser, error)
}

func NewRootCommand(env Env) *cobra.Command {
	if env.ReadFile == nil {
		env.ReadFile = os.ReadFile
	}
	if env.CreateReport == nil {
		env.CreateReport = func(path string) (io.WriteCloser, error) { return os.Create(path) }
	}

	root := &cobra.Command{
		Use:           "eteeap",
		Short:         "ETEEAP applicant workflow: course preferences, documents and submission",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		loginCommand(env),
		logoutCommand(env),
		whoamiCommand(env),
		coursesCommand(env),
		preferencesCommand(env),
		selectCommand(env),
		uploadCommand(env),
		submitCommand(env),
		trackCommand(env),
		reportCommand(env),
	)
	return root
}

func loginCommand(env Env) *cobra.Command {
	var applicantID, email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Remember the applicant identity for later commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := domain.Session{
				Role:        domain.RoleApplicant,
				ApplicantID: strings.TrimSpace(applicantID),
				Email:       strings.TrimSpace(email),
			}
			if err := env.Sessions.Save(cmd.Context(), session); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Login successful!")
			return nil
		},
	}
	cmd.Flags().StringVar(&applicantID, "applicant-id", "", "applicant id issued by the admissions portal")
	cmd.Flags().StringVar(&email, "email", "", "applicant email")
	_ = cmd.MarkFlagRequired("applicant-id")
	return cmd
}

func logoutCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the remembered identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := env.Sessions.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully!")
			return nil
		},
	}
}

func whoamiCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the remembered identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd.Context(), env)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "applicant: %s\n", session.ApplicantID)
			if session.Email != "" {
				fmt.Fprintf(out, "email:     %s\n", session.Email)
			}
			fmt.Fprintf(out, "role:      %s\n", session.Role)
			return nil
		},
	}
}

func coursesCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List available courses by department",
		RunE: func(cmd *cobra.Command, _ []string) error {
			courses, err := env.Workflow.ListCourses(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCODE\tCOURSE\tDEPARTMENT")
			for _, c := range courses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Code, c.Name, c.Department)
			}
			return tw.Flush()
		},
	}
}

func preferencesCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "preferences",
		Short: "Show the 1st, 2nd and 3rd course preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd.Context(), env)
			if err != nil {
				return err
			}
			view, err := env.Workflow.Track(cmd.Context(), session)
			if err != nil {
				return err
			}
			printPreferences(cmd.OutOrStdout(), view.Preferences)
			return nil
		},
	}
}

func selectCommand(env Env) *cobra.Command {
	var slot int
	var courseID string
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Choose a course for a preference slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd.Context(), env)
			if err != nil {
				return err
			}
			if _, err := env.Workflow.SelectCourse(cmd.Context(), session, slot-1, courseID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), usecase.PreferenceSavedMessage)
			return nil
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "preference slot: 1, 2 or 3")
	cmd.Flags().StringVar(&courseID, "course", "", "course id from 'courses'")
	_ = cmd.MarkFlagRequired("slot")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func uploadCommand(env Env) *cobra.Command {
	var docType, path string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload or replace a required document",
		Long:  "Upload a file as the document of the given type. A document already on file for that type is replaced.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd.Context(), env)
			if err != nil {
				return err
			}
			content, err := env.ReadFile(path)
			if err != nil {
				return domain.Reject(domain.ErrEmptyFile, "Could not read %s.", path)
			}
			doc, err := env.Workflow.UploadOrReplace(cmd.Context(), session,
				domain.DocumentType(strings.ToUpper(strings.TrimSpace(docType))),
				domain.Upload{
					FileName:    filepath.Base(path),
					ContentType: mime.TypeByExtension(filepath.Ext(path)),
					Content:     content,
				})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s: %s)\n", usecase.FilesUploadedMessage, env.Catalog.Label(doc.Type), doc.FileName)
			return nil
		},
	}
	cmd.Flags().StringVar(&docType, "type", "", "document type, e.g. INFORMATIVE_COPY_OF_TOR")
	cmd.Flags().StringVar(&path, "file", "", "path of the file to upload")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func submitCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Submit the application",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd.Context(), env)
			if err != nil {
				return err
			}
			result, err := env.Workflow.Submit(cmd.Context(), session)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), usecase.SubmissionNotice(result).Message)
			return nil
		},
	}
}

func trackCommand(env Env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Show application status, preferences and documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireSession(cmd.Context(), env)
			if err != nil {
				return err
			}
			view, err := env.Workflow.Track(cmd.Context(), session)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printTracking(out, env.Catalog, view)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tracking view as JSON")
	return cmd
}

func reportCommand(env Env) *cobra.Command {
	var applicants []string
	var outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a required-document completeness workbook for applicants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := env.Reporter.Completeness(cmd.Context(), applicants)
			if err != nil {
				return err
			}
			f, err := env.CreateReport(outPath)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := report.WriteCompleteness(f, rows); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d applicant(s) to %s\n", len(rows), outPath)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&applicants, "applicants", nil, "comma-separated applicant ids")
	cmd.Flags().StringVar(&outPath, "out", "completeness.xlsx", "output workbook path")
	_ = cmd.MarkFlagRequired("applicants")
	return cmd
}

func requireSession(ctx context.Context, env Env) (domain.Session, error) {
	session, err := env.Sessions.Load(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if !session.HasApplicant() {
		return domain.Session{}, domain.ErrNoSession
	}
	return session, nil
}

var workflowKinds = []error{
	domain.ErrNotFound, domain.ErrInvalidInput, domain.ErrUnauthorized, domain.ErrTemporary,
	domain.ErrServer, domain.ErrBusy, domain.ErrNoSession, domain.ErrClosed,
}

// ErrorMessage is what the terminal shows for err: the user notice for
// workflow failures, the raw text for usage errors.
func ErrorMessage(err error) string {
	for _, kind := range workflowKinds {
		if domain.IsKind(err, kind) {
			return usecase.NoticeFor(err).Message
		}
	}
	if _, ok := domain.MessageOf(err); ok {
		return usecase.NoticeFor(err).Message
	}
	return err.Error()
}
