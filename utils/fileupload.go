package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
	// AllowedDocumentFormat is the only accepted extension for signed contracts.
	AllowedDocumentFormat = ".pdf"
	// DocumentContentType is stored with every signed contract document.
	DocumentContentType = "application/pdf"
	// MaxSignatureLength bounds a typed or drawn signature payload.
	MaxSignatureLength = 512 * 1024
)

var pdfMagic = []byte("%PDF-")

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateDocumentFile checks the size and extension of an uploaded
// contract document.
func ValidateDocumentFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext != AllowedDocumentFormat {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", AllowedDocumentFormat),
		}
	}

	return nil
}

// ReadDocument validates an uploaded contract document and returns its
// contents. The content must start with the PDF header.
func ReadDocument(fileHeader *multipart.FileHeader) ([]byte, error) {
	if err := ValidateDocumentFile(fileHeader); err != nil {
		return nil, err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	// Read one byte past the limit so oversized bodies with a lying header are caught.
	data, err := io.ReadAll(io.LimitReader(src, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, &FileUploadError{
			Code:    "INVALID_FILE_CONTENT",
			Message: "File content is not a PDF document",
		}
	}
	return data, nil
}

// ValidateSignature accepts either a typed signature or a drawn one sent as a
// base64 PNG data URL.
func ValidateSignature(signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return &FileUploadError{Code: "SIGNATURE_REQUIRED", Message: "A signature is required"}
	}
	if len(signature) > MaxSignatureLength {
		return &FileUploadError{Code: "SIGNATURE_TOO_LARGE", Message: "Signature payload is too large"}
	}

	const dataURLPrefix = "data:image/png;base64,"
	if !strings.HasPrefix(signature, "data:") {
		return nil
	}
	if !strings.HasPrefix(signature, dataURLPrefix) {
		return &FileUploadError{Code: "INVALID_SIGNATURE", Message: "Drawn signatures must be PNG data URLs"}
	}
	if _, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(signature, dataURLPrefix)); err != nil {
		return &FileUploadError{Code: "INVALID_SIGNATURE", Message: "Signature image is not valid base64"}
	}
	return nil
}

// DocumentDownloadPath returns the API path serving a contract's signed
// document.
func DocumentDownloadPath(contractID uint) string {
	return fmt.Sprintf("/api/v1/contracts/%d/document", contractID)
}
