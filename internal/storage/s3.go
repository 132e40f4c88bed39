package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"schoolhub/internal/logger"
)

var ErrNotConfigured = errors.New("storage_not_configured")

type Configuration struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	URLTTL          time.Duration
}

type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Presigner hands out short-lived upload URLs so files never pass through
// the API process.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (Upload, error)
}

type S3 struct {
	bucket  string
	prefix  string
	ttl     time.Duration
	presign *s3.PresignClient
}

// NewS3 returns nil when no bucket is configured.
func NewS3(ctx context.Context, cfg Configuration) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	logger.Default().WithField("bucket", cfg.Bucket).Info("s3 uploads enabled")
	return &S3{
		bucket:  cfg.Bucket,
		prefix:  cfg.KeyPrefix,
		ttl:     ttl,
		presign: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
	}, nil
}

func (s *S3) PresignUpload(ctx context.Context, key, contentType string) (Upload, error) {
	if s == nil {
		return Upload{}, ErrNotConfigured
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Upload{}, fmt.Errorf("presign put %s: %w", key, err)
	}
	return Upload{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}, nil
}

// AssignmentAttachmentKey builds a collision-free object key that keeps the
// sanitized original file name for downloads.
func AssignmentAttachmentKey(schoolID, courseID, assignmentID, fileName string) string {
	return path.Join("schools", schoolID, "courses", courseID, "assignments", assignmentID, uuid.NewString()+"-"+SanitizeFileName(fileName))
}

// SubmissionAttachmentPrefix is the folder a student's uploads for one
// assignment live under. Submissions may only point inside it.
func SubmissionAttachmentPrefix(schoolID, courseID, assignmentID, studentID string) string {
	return path.Join("schools", schoolID, "courses", courseID, "assignments", assignmentID, "submissions", studentID) + "/"
}

func SubmissionAttachmentKey(schoolID, courseID, assignmentID, studentID, fileName string) string {
	return SubmissionAttachmentPrefix(schoolID, courseID, assignmentID, studentID) + uuid.NewString() + "-" + SanitizeFileName(fileName)
}

// OwnsKey reports whether key is a plain object key directly below prefix.
func OwnsKey(prefix, key string) bool {
	rest, ok := strings.CutPrefix(key, prefix)
	return ok && rest != "" && !strings.Contains(rest, "/") && path.Clean(key) == key
}

func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	return out
}
