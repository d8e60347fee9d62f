package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/lvatt/flowgraph/log"
)

const userAgent = "nbfmrx"

// progressStep is the number of bytes between progress log entries.
const progressStep = 1 << 20

type fetchCommand struct {
	url string
	out string
}

func (cmd *fetchCommand) Name() string {
	return "fetch"
}

func (cmd *fetchCommand) Help() string {
	return "Download an IQ recording over HTTP"
}

func (cmd *fetchCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.url, "url", "u", "", "recording URL")
	fs.StringVarP(&cmd.out, "out", "o", "", "output file, defaults to the last URL path element")
}

func (cmd *fetchCommand) Run(out io.Writer) error {
	if cmd.url == "" {
		return errors.New("missing --url flag")
	}
	dst := cmd.out
	if dst == "" {
		u, err := url.Parse(cmd.url)
		if err != nil {
			return err
		}
		dst = path.Base(u.Path)
		if dst == "." || dst == "/" {
			return errors.New("missing --out flag")
		}
	}
	n, err := download(context.Background(), cmd.url, dst, log.GetLogger())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d bytes\n", dst, n)
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// download streams the response body into the file. The file is removed
// if the download fails.
func download(ctx context.Context, rawURL, dst string, l logrus.FieldLogger) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get %s: %s", rawURL, resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	p := &progress{
		log:   l.WithField("url", rawURL),
		total: resp.ContentLength,
	}
	n, err := io.Copy(f, io.TeeReader(resp.Body, p))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		os.Remove(dst)
		return 0, fmt.Errorf("get %s: %d of %d bytes", rawURL, n, resp.ContentLength)
	}
	return n, nil
}

// progress logs every progressStep bytes written through it.
type progress struct {
	log     logrus.FieldLogger
	total   int64
	written int64
	next    int64
}

func (p *progress) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.written >= p.next {
		e := p.log.WithField("bytes", p.written)
		if p.total > 0 {
			e = e.WithField("done", fmt.Sprintf("%.1f%%", 100*float64(p.written)/float64(p.total)))
		}
		e.Debug("downloading")
		p.next = p.written + progressStep
	}
	return len(b), nil
}
