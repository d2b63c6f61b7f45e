package loader

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// WithPartLogger logs every part downloaded by LoadS3 against the expected number of parts.
//
// Log messages are in format `downloaded X/Y parts so far`, or `downloaded Y/Y parts` for the last part.
func WithPartLogger(logger *log.Logger) func(*Options) {
	return func(opts *Options) {
		opts.PartLogger = logger
	}
}

// partLoggingClient logs successful GetObject calls made by manager.Downloader.
//
// GetObject may be called from any of the downloader's goroutines.
type partLoggingClient struct {
	manager.DownloadAPIClient
	logger    *log.Logger
	partCount int32
	n         atomic.Int32
}

func newPartLoggingClient(client manager.DownloadAPIClient, logger *log.Logger, size, partSize int64) *partLoggingClient {
	if partSize <= 0 {
		partSize = manager.DefaultDownloadPartSize
	}

	return &partLoggingClient{
		DownloadAPIClient: client,
		logger:            logger,
		partCount:         int32((size + partSize - 1) / partSize),
	}
}

func (c *partLoggingClient) GetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	output, err := c.DownloadAPIClient.GetObject(ctx, input, optFns...)
	if err == nil {
		if v := c.n.Add(1); v == c.partCount {
			c.logger.Printf("downloaded %d/%d parts", v, c.partCount)
		} else {
			c.logger.Printf("downloaded %d/%d parts so far", v, c.partCount)
		}
	}

	return output, err
}

var _ manager.DownloadAPIClient = (*partLoggingClient)(nil)
