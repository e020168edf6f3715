package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/garmage/API-CTC-finetuned/internal/pipeline"
)

const uploadField = "file"

// readUpload returns the content of the first "file" part that carries a
// filename parameter. Parts without one are plain form fields and are
// skipped. A body that is not multipart has no file part.
func readUpload(r *http.Request) ([]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &pipeline.ValidationError{Err: pipeline.ErrMissingFile}
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, &pipeline.ValidationError{Err: pipeline.ErrMissingFile}
		}
		if err != nil {
			return nil, uploadError(err)
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			part.Close()
			continue
		}
		filename, ok := params["filename"]
		if !ok {
			part.Close()
			continue
		}
		if filename == "" {
			part.Close()
			return nil, &pipeline.ValidationError{Err: pipeline.ErrEmptyFilename}
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, uploadError(err)
		}
		return data, nil
	}
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		err = fmt.Errorf("upload exceeds %d bytes", maxErr.Limit)
	}
	return &pipeline.ProcessingError{Stage: pipeline.StageDecode, Err: err}
}
