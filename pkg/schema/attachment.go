package schema

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Attachment is a reference to a stored file. The URL locates the file; the
// attachment does not own it.
type Attachment struct {
	URL        string
	Filename   string
	Filesize   int64
	UploadedAt time.Time
}

// SameFile reports whether two attachments refer to the same file.
// Identity is the (filename, filesize, url) tuple, which is what
// replace-on-rewrite semantics key on.
func (a Attachment) SameFile(other Attachment) bool {
	return a.Filename == other.Filename && a.Filesize == other.Filesize && a.URL == other.URL
}

func (a Attachment) String() string {
	return fmt.Sprintf("File: %s, Size: %d bytes, Uploaded %s", a.Filename, a.Filesize, humanize.Time(a.UploadedAt))
}
