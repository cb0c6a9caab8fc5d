package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/healthz":                                  "/healthz",
		"/v1/courses":                               "/v1/courses",
		"/v1/applicants/7/track":                    "/v1/applicants/{id}/track",
		"/v1/applicants/7/preferences/0":            "/v1/applicants/{id}/preferences/{slot}",
		"/v1/applicants/12/documents/MARRIAGE_CERT": "/v1/applicants/{id}/documents/{type}",
		"/v1/applicants/12":                         "/v1/applicants/{id}",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
