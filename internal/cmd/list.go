package cmd

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/rawzip/internal"
	"github.com/nguyengg/rawzip/sri"
	"github.com/nguyengg/rawzip/zip/scan"
)

type List struct {
	SRI    string   `long:"sri" description:"also print the digest of every entry using this hash function" choice:"sha1" choice:"sha256" choice:"sha384" choice:"sha512"`
	Verify []string `long:"verify" description:"name=digest pairs; fail if the named entry does not match the subresource integrity digest" value-name:"NAME=DIGEST"`
	Args   struct {
		Files []string `positional-arg-name:"file" description:"the local files or S3 URIs (s3://bucket/key) to be listed" required:"yes"`
	} `positional-args:"yes"`

	expected map[string][]string
	logger   *log.Logger
	out      io.Writer
}

func (c *List) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	c.expected = make(map[string][]string)
	for _, v := range c.Verify {
		name, digest, ok := strings.Cut(v, "=")
		if !ok || name == "" || digest == "" {
			return fmt.Errorf("invalid verify argument %q, expected NAME=DIGEST", v)
		}

		c.expected[name] = append(c.expected[name], digest)
	}

	if c.out == nil {
		c.out = os.Stdout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		c.logger = internal.NewLogger(i+1, n, file)

		err := c.list(ctx, file)
		if err == nil {
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		c.logger.Printf("list error: %v", err)
	}

	if success != n {
		return fmt.Errorf("failed to list %d/%d files", n-success, n)
	}

	return nil
}

func (c *List) list(ctx context.Context, name string) error {
	b, err := load(ctx, c.logger, name, false, 0)
	if err != nil {
		return err
	}
	defer b.Release()

	// compressed entries are listed as-is, and their digests are computed over the compressed bytes.
	a, err := scan.Open(b.Bytes(), func(opts *scan.Options) {
		opts.AllowCompressed = true
	})
	if err != nil {
		return describe(ctx, b.Bytes(), err)
	}

	eocd := a.EOCD()
	c.logger.Printf("%d entries, central directory is %s at offset 0x%x, end of central directory at offset 0x%x",
		eocd.CDCount, humanize.IBytes(uint64(eocd.CDSize)), eocd.CDOffset, eocd.Offset)
	if eocd.Comment != "" {
		c.logger.Printf("comment: %s", internal.TruncateRightWithSuffix(eocd.Comment, 60, "..."))
	}

	// payloads are only needed for digests.
	needData := c.SRI != "" || len(c.expected) != 0

	mismatched := 0
	for fh, err := range a.CentralDirectory() {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		line := fmt.Sprintf("%-8s %10s %10s %08x %s %s",
			methodName(fh.Method),
			humanize.IBytes(fh.CompressedSize64),
			humanize.IBytes(fh.UncompressedSize64),
			fh.CRC32,
			fh.Modified.Format("2006-01-02 15:04"),
			fh.Name)

		if needData && !fh.Mode().IsDir() {
			e, err := a.Entry(fh)
			if err != nil {
				return err
			}

			if c.SRI != "" {
				d, err := sri.Digest(c.SRI, e.Data)
				if err != nil {
					return err
				}

				line += " " + d
			}

			if digests, ok := c.expected[fh.Name]; ok {
				ok, err = sri.Verify(e.Data, digests...)
				if err != nil {
					return fmt.Errorf("verify %q error: %w", fh.Name, err)
				}

				if !ok {
					c.logger.Printf(`"%s" does not match any of the expected digests`, fh.Name)
					mismatched++
				}
			}
		}

		_, _ = fmt.Fprintln(c.out, line)
	}

	if mismatched != 0 {
		return fmt.Errorf("%d entries failed verification", mismatched)
	}

	return nil
}

func methodName(method uint16) string {
	switch method {
	case zip.Store:
		return "stored"
	case zip.Deflate:
		return "deflated"
	default:
		return fmt.Sprintf("method-%d", method)
	}
}
