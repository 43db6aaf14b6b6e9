package files

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/wartburg/mcsp/core"
)

// S3 stores files in an S3-compatible bucket (AWS, DigitalOcean Spaces, MinIO).
type S3 struct {
	client *s3.S3
	bucket string
}

var _ core.FileStorage = (*S3)(nil)

func NewS3(conf core.UploadsConfig) (*S3, error) {
	if conf.S3Bucket == "" {
		return nil, errors.New("uploads.s3Bucket is required")
	}
	awsConf := &aws.Config{
		Region: aws.String(conf.S3Region),
	}
	if conf.S3AccessKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentials(conf.S3AccessKey, conf.S3SecretKey, "")
	}
	if conf.S3Endpoint != "" {
		awsConf.Endpoint = aws.String(conf.S3Endpoint)
		awsConf.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, errors.Wrap(err, "creating s3 session")
	}
	return &S3{client: s3.New(sess), bucket: conf.S3Bucket}, nil
}

func (s *S3) Save(ctx context.Context, prefix, filename string, r io.Reader) (string, error) {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", errors.Wrap(err, "reading upload")
		}
		body = bytes.NewReader(data)
	}

	key := newKey(prefix, filename)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading object")
	}
	return key, nil
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "getting object")
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return core.ErrFileNotFound
		}
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]core.StoredFile, error) {
	var stored []core.StoredFile
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			stored = append(stored, core.StoredFile{
				Key:     aws.StringValue(obj.Key),
				Size:    aws.Int64Value(obj.Size),
				ModTime: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing objects")
	}
	return stored, nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
