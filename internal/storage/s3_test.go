package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Homework 1.pdf":         "Homework_1.pdf",
		"../../etc/passwd":       "passwd",
		`C:\Users\me\essay.docx`: "essay.docx",
		"résumé.txt":             "rsum.txt",
		"...":                    "file",
		"":                       "file",
	}
	for input, want := range cases {
		if got := SanitizeFileName(input); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestAssignmentAttachmentKey(t *testing.T) {
	key := AssignmentAttachmentKey("s1", "c1", "a1", "notes.pdf")
	if !strings.HasPrefix(key, "schools/s1/courses/c1/assignments/a1/") || !strings.HasSuffix(key, "-notes.pdf") {
		t.Fatalf("unexpected key %s", key)
	}
	if key == AssignmentAttachmentKey("s1", "c1", "a1", "notes.pdf") {
		t.Fatalf("expected unique keys")
	}
}

func TestSubmissionAttachmentKeys(t *testing.T) {
	prefix := SubmissionAttachmentPrefix("s1", "c1", "a1", "st1")
	if prefix != "schools/s1/courses/c1/assignments/a1/submissions/st1/" {
		t.Fatalf("unexpected prefix %s", prefix)
	}
	key := SubmissionAttachmentKey("s1", "c1", "a1", "st1", "my essay.docx")
	if !OwnsKey(prefix, key) || !strings.HasSuffix(key, "-my_essay.docx") {
		t.Fatalf("expected %s to sit under %s", key, prefix)
	}

	other := SubmissionAttachmentKey("s1", "c1", "a1", "st2", "essay.docx")
	rejected := []string{
		other,
		prefix,
		prefix + "../st2/essay.docx",
		prefix + "nested/essay.docx",
		AssignmentAttachmentKey("s1", "c1", "a1", "brief.pdf"),
		"essay.docx",
	}
	for _, k := range rejected {
		if OwnsKey(prefix, k) {
			t.Fatalf("expected %s to be rejected for %s", k, prefix)
		}
	}
}

func TestNewS3Disabled(t *testing.T) {
	s, err := NewS3(context.Background(), Configuration{})
	if err != nil || s != nil {
		t.Fatalf("expected nil storage without bucket, got %v %v", s, err)
	}
	if _, err := s.PresignUpload(context.Background(), "k", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPresignUpload(t *testing.T) {
	s, err := NewS3(context.Background(), Configuration{
		Bucket:          "schoolhub-test",
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		KeyPrefix:       "uploads/",
		URLTTL:          5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new s3: %v", err)
	}
	upload, err := s.PresignUpload(context.Background(), "schools/s1/file.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if upload.Method != "PUT" || upload.Key != "schools/s1/file.pdf" {
		t.Fatalf("unexpected upload %+v", upload)
	}
	parsed, err := url.Parse(upload.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Host+parsed.Path, "uploads/schools/s1/file.pdf") {
		t.Fatalf("expected prefixed key in url, got %s", upload.URL)
	}
	if parsed.Query().Get("X-Amz-Expires") != "300" {
		t.Fatalf("expected 300s expiry, got %s", parsed.Query().Get("X-Amz-Expires"))
	}
}
