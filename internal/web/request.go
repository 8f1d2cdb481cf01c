// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/samber/oops"
)

const maxBodyBytes = 64 << 10

// decodeFields reads the named fields from a JSON object or a form-encoded
// body. Missing fields decode as "". JSON values that are not strings are
// listed in nonString; numbers and booleans keep their text so length rules
// still apply.
func decodeFields(w http.ResponseWriter, r *http.Request, names ...string) (out map[string]string, nonString []string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	out = make(map[string]string, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty or bad type falls through to JSON
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, oops.Code("WEB_BAD_REQUEST").With("content_type", mediaType).Wrap(err)
		}
		for _, name := range names {
			out[name] = r.PostForm.Get(name)
		}
		return out, nil, nil
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, oops.Code("WEB_BAD_REQUEST").With("content_type", mediaType).Wrap(err)
	}
	for _, name := range names {
		switch v := body[name].(type) {
		case nil:
			out[name] = ""
		case string:
			out[name] = v
		case float64, bool:
			out[name] = fmt.Sprint(v)
			nonString = append(nonString, name)
		default:
			// Objects and arrays carry no usable text.
			out[name] = ""
			nonString = append(nonString, name)
		}
	}
	return out, nonString, nil
}
