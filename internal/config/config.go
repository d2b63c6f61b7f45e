package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

// ExtractConfig contains the [extract] section.
//
// Command-line flags take precedence over these values.
type ExtractConfig struct {
	Concurrency     int
	UnwrapRoot      bool
	NoOverwrite     bool
	AllowCompressed bool
	SkipChecksum    bool
}

// ForExtract returns configuration for extract.
func (l *Loader) ForExtract() (c ExtractConfig) {
	sec := l.section("extract")
	if sec == nil {
		return c
	}

	c.Concurrency = sec.Key("concurrency").MustInt(0)
	c.UnwrapRoot = sec.Key("unwrap-root").MustBool(false)
	c.NoOverwrite = sec.Key("no-overwrite").MustBool(false)
	c.AllowCompressed = sec.Key("allow-compressed").MustBool(false)
	c.SkipChecksum = sec.Key("skip-checksum").MustBool(false)

	return
}

// ForExtract calls Loader.ForExtract on the DefaultLoader instance.
func ForExtract() (c ExtractConfig) {
	return DefaultLoader.ForExtract()
}

// BucketConfig contains configuration settings for a specific bucket.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
}

// ForBucket returns configuration for a specific bucket from the [s3://bucket] section.
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket

	sec := l.section("s3://" + bucket)
	if sec == nil {
		return c
	}

	c.AWSProfile = sec.Key("aws-profile").Value()

	if sec.HasKey("expected-bucket-owner") {
		c.ExpectedBucketOwner = aws.String(sec.Key("expected-bucket-owner").Value())
	}

	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) (c BucketConfig) {
	return DefaultLoader.ForBucket(bucket)
}
