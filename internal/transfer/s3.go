package transfer

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the part of the S3 client used to read archives.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the archive from an S3 bucket. Credentials and region come
// from the standard AWS environment unless a client is supplied.
type S3Source struct {
	Bucket string
	Key    string

	once   sync.Once
	api    S3API
	apiErr error
}

func newS3Source(base, filename string, options *sourceOptions) (*S3Source, error) {
	location := strings.TrimPrefix(base, s3Scheme)
	bucket, prefix, _ := strings.Cut(location, "/")

	if bucket == "" {
		return nil, wrapf(errInvalidS3Location, "%s", base)
	}

	return &S3Source{
		Bucket: bucket,
		Key:    strings.TrimPrefix(path.Join(prefix, filename), "/"),
		api:    options.s3,
	}, nil
}

// Open issues GetObject and hands back the object body.
func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	api, err := s.client(ctx)
	if err != nil {
		return nil, 0, err
	}

	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, 0, wrapf(err, "get %s", s)
	}

	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}

	return out.Body, length, nil
}

func (s *S3Source) String() string {
	return s3Scheme + s.Bucket + "/" + s.Key
}

func (s *S3Source) client(ctx context.Context) (S3API, error) {
	s.once.Do(func() {
		if s.api != nil {
			return
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			s.apiErr = wrapf(err, "load aws config")
			return
		}

		s.api = s3.NewFromConfig(cfg)
	})

	return s.api, s.apiErr
}
