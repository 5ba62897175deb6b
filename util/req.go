// Copyright (c) 2017-2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"net/http"

	"github.com/gorilla/schema"
)

// decoder caches the struct metadata of the decoded types. It is safe for
// concurrent use.
var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// ParseGetParams parses the query params from the GET request into
// a struct. This method requires the struct type to be defined
// with `schema` tags.
func ParseGetParams(r *http.Request, dst interface{}) error {
	err := r.ParseForm()
	if err != nil {
		return err
	}

	return decoder.Decode(dst, r.Form)
}

// ParsePostForm parses the urlencoded or multipart form of a POST request
// into a struct. This method requires the struct type to be defined with
// `schema` tags.
func ParsePostForm(r *http.Request, dst interface{}) error {
	err := r.ParseForm()
	if err != nil {
		return err
	}

	return decoder.Decode(dst, r.PostForm)
}
