package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the slice of the S3 client the loader needs.
// *s3.Client satisfies it.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Sources names where each catalog document lives. Each value is a local
// path, an s3://bucket/key URL, or empty for the embedded default.
type Sources struct {
	Templates string
	Stories   string
}

func (s Sources) usesS3() bool {
	return strings.HasPrefix(s.Templates, "s3://") || strings.HasPrefix(s.Stories, "s3://")
}

// S3Options configures the client used for s3:// sources. Endpoint points
// at an S3-compatible store such as MinIO; empty means AWS.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a client from the default AWS config chain, with
// static credentials when both keys are supplied.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("catalog: load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Load resolves both sources and parses the result. An S3 client is only
// created when one of the sources is an s3:// URL.
func Load(ctx context.Context, src Sources, opts S3Options) (*Catalog, error) {
	var getter ObjectGetter
	if src.usesS3() {
		client, err := NewS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		getter = client
	}
	return LoadWith(ctx, src, getter)
}

// LoadWith is Load with the S3 client supplied by the caller.
func LoadWith(ctx context.Context, src Sources, getter ObjectGetter) (*Catalog, error) {
	tmpl, err := read(ctx, src.Templates, defaultTemplatesJSON, getter)
	if err != nil {
		return nil, err
	}
	stories, err := read(ctx, src.Stories, defaultStoriesJSON, getter)
	if err != nil {
		return nil, err
	}
	return Parse(tmpl, stories)
}

func read(ctx context.Context, source string, fallback []byte, getter ObjectGetter) ([]byte, error) {
	switch {
	case source == "":
		return fallback, nil

	case strings.HasPrefix(source, "s3://"):
		if getter == nil {
			return nil, fmt.Errorf("catalog: no s3 client for %s", source)
		}
		u, err := url.Parse(source)
		if err != nil || u.Host == "" || strings.TrimPrefix(u.Path, "/") == "" {
			return nil, fmt.Errorf("catalog: invalid s3 url %q", source)
		}
		out, err := getter.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
		})
		if err != nil {
			return nil, fmt.Errorf("catalog: get %s: %w", source, err)
		}
		defer out.Body.Close()

		b, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", source, err)
		}
		return b, nil

	default:
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", source, err)
		}
		return b, nil
	}
}
