package service

import (
	"fmt"
	"net/url"
	"strings"
)

// Preview dimensions requested for every stored image.
const (
	PreviewWidth   = 2000
	PreviewHeight  = 2000
	PreviewQuality = 100
)

// URLBuilder derives the public URLs clients use to fetch files and avatars.
type URLBuilder struct {
	Endpoint  string
	ProjectID string
}

// FilePreview returns the preview URL of a stored file.
func (b URLBuilder) FilePreview(fileID string) string {
	return fmt.Sprintf("%s/storage/files/%s/preview?width=%d&height=%d&quality=%d&project=%s",
		b.base(), url.PathEscape(fileID), PreviewWidth, PreviewHeight, PreviewQuality,
		url.QueryEscape(b.ProjectID))
}

// Avatar returns the URL of the generated initials avatar for name.
func (b URLBuilder) Avatar(name string) string {
	return fmt.Sprintf("%s/avatars/initials?name=%s&project=%s",
		b.base(), url.QueryEscape(name), url.QueryEscape(b.ProjectID))
}

func (b URLBuilder) base() string {
	return strings.TrimSuffix(b.Endpoint, "/")
}
