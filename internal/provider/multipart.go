package provider

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// multipartBody is an immutable serialized multipart payload. The same byte
// slice must be both signed and transmitted: re-serializing would generate a
// fresh boundary and invalidate the signature.
type multipartBody struct {
	contentType string
	bytes       []byte
}

// encodeImageForm serializes an image upload form with the provider's field
// layout: a `content` file part plus an optional `metadata` JSON field.
func encodeImageForm(filename string, image []byte, metadata []byte) (multipartBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if len(metadata) > 0 {
		if err := w.WriteField("metadata", string(metadata)); err != nil {
			return multipartBody{}, fmt.Errorf("write metadata field: %w", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="content"; filename="%s"`, filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return multipartBody{}, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return multipartBody{}, fmt.Errorf("write image part: %w", err)
	}

	if err := w.Close(); err != nil {
		return multipartBody{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	return multipartBody{contentType: w.FormDataContentType(), bytes: buf.Bytes()}, nil
}
