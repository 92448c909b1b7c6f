// Package s3store persists runpacks as JSON objects in S3 (or any
// S3-compatible endpoint such as MinIO). Objects are keyed by scenario and
// run id so listing a scenario is one prefix scan.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/store"
)

type Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack)
	Prefix   string // Optional key prefix, e.g. "runpacks/"
}

type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("s3store: load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *Store) key(scenario ident.ScenarioID, run ident.RunID) string {
	return s.prefix + string(scenario) + "/" + string(run) + ".json"
}

func (s *Store) PutRunpack(ctx context.Context, p *runpack.Pack) error {
	key := s.key(p.ScenarioID, p.RunID)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return store.ErrDuplicate
	}

	raw, err := p.Encode()
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put %s: %w", key, err)
	}
	return nil
}

// GetRunpack scans scenario prefixes because object keys embed the scenario
// while the interface keys by run id alone.
func (s *Store) GetRunpack(ctx context.Context, run ident.RunID) (*runpack.Pack, error) {
	suffix := "/" + string(run) + ".json"
	var key string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: list: %w", err)
		}
		for _, obj := range page.Contents {
			if strings.HasSuffix(aws.ToString(obj.Key), suffix) {
				key = aws.ToString(obj.Key)
			}
		}
	}
	if key == "" {
		return nil, store.ErrNotFound
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("s3store: get %s: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read %s: %w", key, err)
	}
	p, err := runpack.Decode(raw)
	if err != nil {
		return nil, err
	}
	if idx, err := runpack.Verify(p); err != nil {
		return nil, fmt.Errorf("s3store: stored pack %s corrupt at step %d: %w", run, idx, err)
	}
	return p, nil
}

func (s *Store) ListRunpacks(ctx context.Context, scenario ident.ScenarioID) ([]ident.RunID, error) {
	prefix := s.prefix + string(scenario) + "/"
	var out []ident.RunID
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			name = strings.TrimSuffix(name, ".json")
			if name != "" {
				out = append(out, ident.RunID(name))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ store.Store = (*Store)(nil)
