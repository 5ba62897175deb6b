// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sanitize

import (
	"net/http"
	"path/filepath"
	"strings"

	svg "github.com/h2non/go-is-svg"
)

// ImageMaxSize is the largest image upload that is accepted.
const ImageMaxSize = 5 * 1024 * 1024

// imageTypes maps the allowed image extensions to the MIME type that the
// file contents must sniff as.
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// ImageUpload validates an uploaded image and returns the cleaned file
// name. The extension must be allowed and the contents must match it. SVG
// is always rejected since it can carry scripts.
func ImageUpload(filename string, data []byte) (string, error) {
	name := Filename(filename)
	ext := strings.ToLower(filepath.Ext(name))
	want, ok := imageTypes[ext]
	switch {
	case !ok:
		return "", FieldError{Field: "imagen", Reason: reasonInvalid}
	case len(data) == 0 || len(data) > ImageMaxSize:
		return "", FieldError{Field: "imagen", Reason: reasonInvalid}
	case svg.IsSVG(data):
		return "", FieldError{Field: "imagen", Reason: reasonInvalid}
	}
	if http.DetectContentType(data) != want {
		return "", FieldError{Field: "imagen", Reason: reasonInvalid}
	}
	return name, nil
}
