package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mholt/archives"
	"github.com/nguyengg/rawzip/internal"
	"github.com/nguyengg/rawzip/internal/config"
	"github.com/nguyengg/rawzip/loader"
	"github.com/nguyengg/rawzip/zip/scan"
)

// load reads the archive at name, which is either a local file or an S3 URI.
//
// S3 clients are configured for the archive's bucket from the .rawzip [s3://bucket] section.
func load(ctx context.Context, logger *log.Logger, name string, progressBar bool, concurrency int) (*loader.Buffer, error) {
	optFns := []func(*loader.Options){loader.WithProgressLogger(logger, 5*time.Second)}
	if progressBar {
		optFns = []func(*loader.Options){loader.WithProgressBar("loading")}
	}

	if internal.IsS3URI(name) {
		bucket, _, err := internal.ParseS3URI(name)
		if err != nil {
			return nil, err
		}

		client, err := config.NewS3ClientForBucket(ctx, bucket, func(options *s3.Options) {
			// without this, getting a bunch of WARN message below:
			// WARN Response has no supported checksum. Not validating response payload.
			options.DisableLogOutputChecksumValidationSkipped = true
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 client error: %w", err)
		}

		expectedBucketOwner := config.ForBucket(bucket).ExpectedBucketOwner
		optFns = append(optFns, func(opts *loader.Options) {
			opts.Client = client
			opts.ExpectedBucketOwner = expectedBucketOwner
			opts.Concurrency = concurrency
		})
		if !progressBar {
			optFns = append(optFns, loader.WithPartLogger(logger))
		}
	}

	return loader.Load(ctx, name, optFns...)
}

// describe adds a hint about what the content looks like to ErrStructureNotFound errors.
//
// Only the content is inspected since the archive's name usually ends in .zip regardless. Other errors are returned
// as-is.
func describe(ctx context.Context, data []byte, err error) error {
	if !errors.Is(err, scan.ErrStructureNotFound) {
		return err
	}

	format, _, identifyErr := archives.Identify(ctx, "", bytes.NewReader(data))
	if identifyErr != nil || format == nil {
		return err
	}

	return fmt.Errorf("%w (content looks like %s)", err, format.Extension())
}
