// Package stackref publishes and reads the outputs document one network stack
// hands to another. Documents live in a local file or an S3 object.
package stackref

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/strata/internal/domain"
)

// ObjectService is the part of the S3 API the store uses.
type ObjectService interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Location is either a local path or an S3 bucket and key.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation accepts s3://bucket/key or a filesystem path.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty outputs location")
	}
	if !strings.HasPrefix(uri, "s3://") {
		return Location{Path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse outputs location %q: %w", uri, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("outputs location %q: want s3://bucket/key", uri)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}

type Store struct {
	objects ObjectService
	log     *logrus.Entry
}

// NewStore returns a store; objects may be nil when only local paths are used.
func NewStore(objects ObjectService, log *logrus.Entry) *Store {
	return &Store{objects: objects, log: log.WithField("component", "stackref")}
}

func (s *Store) Publish(ctx context.Context, uri string, out domain.Outputs) error {
	loc, err := ParseLocation(uri)
	if err != nil {
		return err
	}
	body, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}

	if loc.IsS3() {
		if s.objects == nil {
			return fmt.Errorf("publish %s: no s3 client configured", loc)
		}
		_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(loc.Bucket),
			Key:           aws.String(loc.Key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
			ContentType:   aws.String("application/yaml"),
		})
	} else {
		if dir := filepath.Dir(loc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("publish %s: %w", loc, err)
			}
		}
		err = os.WriteFile(loc.Path, body, 0o644)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", loc, err)
	}

	s.log.WithField("location", loc.String()).Info("outputs published")
	return nil
}

func (s *Store) Read(ctx context.Context, uri string) (domain.Outputs, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return domain.Outputs{}, err
	}

	var body []byte
	if loc.IsS3() {
		if s.objects == nil {
			return domain.Outputs{}, fmt.Errorf("read %s: no s3 client configured", loc)
		}
		obj, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err != nil {
			return domain.Outputs{}, fmt.Errorf("read %s: %w", loc, err)
		}
		defer obj.Body.Close()
		body, err = io.ReadAll(obj.Body)
		if err != nil {
			return domain.Outputs{}, fmt.Errorf("read %s: %w", loc, err)
		}
	} else {
		body, err = os.ReadFile(loc.Path)
		if err != nil {
			return domain.Outputs{}, fmt.Errorf("read %s: %w", loc, err)
		}
	}

	var out domain.Outputs
	if err := yaml.Unmarshal(body, &out); err != nil {
		return domain.Outputs{}, fmt.Errorf("decode %s: %w", loc, err)
	}
	return out, nil
}
