package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// MaxFileSize is 10MB in bytes
const MaxFileSize = 10 * 1024 * 1024

// allowedImageTypes maps accepted job photo extensions to their content type.
var allowedImageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateImageFile checks that an upload is a PNG or JPEG no larger than MaxFileSize
func ValidateImageFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}
	if fileHeader.Size == 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: "Uploaded file is empty",
		}
	}

	if _, ok := ImageContentType(fileHeader.Filename); !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only .png, .jpg and .jpeg files are allowed",
		}
	}
	return nil
}

// ImageContentType returns the content type for an accepted image filename.
func ImageContentType(filename string) (string, bool) {
	ct, ok := allowedImageTypes[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

// JobPhotoKey builds the storage key of a job photo for an order.
func JobPhotoKey(orderID uint, unique, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("orders/%d/job-photo/%s%s", orderID, unique, ext)
}
