package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

func printPreferences(out io.Writer, prefs []domain.TrackedPreference) {
	if len(prefs) == 0 {
		fmt.Fprintln(out, "No course selected")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, pref := range prefs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", pref.Label, pref.CourseName, pref.Status)
	}
	_ = tw.Flush()
}

func printTracking(out io.Writer, catalog domain.DocumentCatalog, view *domain.TrackingView) {
	name := view.Applicant.Name()
	if name == "" {
		name = view.Applicant.ID
	}
	fmt.Fprintf(out, "Applicant: %s\n", name)
	fmt.Fprintf(out, "Status:    %s\n", view.Status)
	if !view.Submitted {
		fmt.Fprintln(out, "No application submitted yet.")
	}

	fmt.Fprintln(out, "\nCourse preferences:")
	printPreferences(out, view.Preferences)

	fmt.Fprintln(out, "\nUploaded documents:")
	if len(view.Documents) == 0 {
		fmt.Fprintln(out, "None")
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, doc := range view.Documents {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", catalog.Label(doc.Type), doc.FileName, doc.Kind())
	}
	_ = tw.Flush()

	if len(view.Missing) > 0 {
		fmt.Fprintln(out, "\nStill missing:")
		for _, entry := range view.Missing {
			marker := ""
			if entry.Mandatory {
				marker = " (required before submitting)"
			}
			fmt.Fprintf(out, "- %s%s\n", entry.Label, marker)
		}
	}
}
