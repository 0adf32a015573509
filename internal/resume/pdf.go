// Package resume turns an uploaded resume into plain text for keyword extraction.
package resume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxSize caps how much of a resume is read.
const MaxSize = 10 << 20

// ErrNotPDF is returned when the input does not start with a PDF header.
var ErrNotPDF = errors.New("not a PDF document")

// Text extracts the plain text of a PDF read from r.
func Text(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("reading resume: %w", err)
	}
	if len(data) > MaxSize {
		return "", fmt.Errorf("resume exceeds %d bytes", MaxSize)
	}
	return textFromBytes(data)
}

// TextFromFile extracts the plain text of the PDF at path.
func TextFromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening resume: %w", err)
	}
	defer f.Close()
	return Text(f)
}

func textFromBytes(data []byte) (text string, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return "", ErrNotPDF
	}
	// The pdf reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing resume PDF: %v", r)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing resume PDF: %w", err)
	}
	plain, err := rd.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting resume text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("extracting resume text: %w", err)
	}
	return sb.String(), nil
}
