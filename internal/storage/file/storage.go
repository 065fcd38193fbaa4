package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	contentTypePNG = "image/png"
	cacheControl   = "max-age=3600"

	// PublicPrefix is the key prefix readable without credentials.
	PublicPrefix = "public/"
)

var (
	// ErrObjectExists is returned when Save would overwrite an existing object.
	ErrObjectExists = errors.New("object already exists")
	// ErrNoPublicURL is returned when a public URL cannot be built for an object.
	ErrNoPublicURL = errors.New("public url unavailable")
)

// Options configures the MinIO connection.
type Options struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketName    string
	UseSSL        bool
	Region        string
	PublicBaseURL string
}

// Storage provides an S3-compatible storage backend using MinIO.
// It stores PNG objects in a single bucket under different prefixes.
type Storage struct {
	client        *minio.Client
	bucketName    string
	publicBaseURL string
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, opts Options) (*Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, opts.BucketName, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	policy, err := publicReadPolicy(opts.BucketName)
	if err != nil {
		return nil, err
	}
	if err := client.SetBucketPolicy(ctx, opts.BucketName, policy); err != nil {
		return nil, fmt.Errorf("failed to set bucket policy: %w", err)
	}

	return &Storage{
		client:        client,
		bucketName:    opts.BucketName,
		publicBaseURL: publicBase(opts),
	}, nil
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy grants anonymous GetObject on keys under PublicPrefix only.
func publicReadPolicy(bucket string) (string, error) {
	policy := bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, PublicPrefix)},
		}},
	}

	data, err := json.Marshal(policy)
	if err != nil {
		return "", fmt.Errorf("failed to marshal bucket policy: %w", err)
	}

	return string(data), nil
}

func publicBase(opts Options) string {
	if opts.PublicBaseURL != "" {
		return strings.TrimRight(opts.PublicBaseURL, "/")
	}

	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.BucketName)
}

// Save uploads a PNG to the specified subdirectory in the bucket.
// It never replaces an existing object: the write is conditional on the key
// being absent. Returns the object path within the bucket.
func (s *Storage) Save(ctx context.Context, subdir, filename string, data []byte) (string, error) {
	objectName := path.Join(subdir, filename)

	_, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	if err == nil {
		return "", fmt.Errorf("save %s: %w", objectName, ErrObjectExists)
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("failed to check object %s: %w", objectName, err)
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentTypePNG,
		CacheControl: cacheControl,
	}
	opts.SetMatchETagExcept("*")

	_, err = s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusPreconditionFailed {
			return "", fmt.Errorf("save %s: %w", objectName, ErrObjectExists)
		}
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return objectName, nil
}

// Load retrieves the object at path and returns a reader.
func (s *Storage) Load(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	return obj, nil
}

// PublicURL returns the publicly resolvable URL of the object at path.
func (s *Storage) PublicURL(path string) (string, error) {
	if path == "" || s.publicBaseURL == "" {
		return "", ErrNoPublicURL
	}

	u, err := url.JoinPath(s.publicBaseURL, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoPublicURL, err)
	}

	return u, nil
}

// Delete removes the specified object from the bucket.
func (s *Storage) Delete(ctx context.Context, path string) error {
	return s.client.RemoveObject(ctx, s.bucketName, path, minio.RemoveObjectOptions{})
}
