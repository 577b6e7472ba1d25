package downloader

import "io"

// ProgressFunc receives transfer progress for one artifact. It is called
// only when the server announced the total size.
type ProgressFunc func(name string, percent float64, downloaded, total int64)

type progressReader struct {
	r          io.Reader
	name       string
	total      int64
	downloaded int64
	report     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.downloaded += int64(n)
		if p.report != nil && p.total > 0 {
			pct := float64(p.downloaded) / float64(p.total) * 100
			if pct > 100 {
				pct = 100
			}
			p.report(p.name, pct, p.downloaded, p.total)
		}
	}
	return n, err
}
