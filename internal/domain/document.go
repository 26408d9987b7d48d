// Package domain holds the core data records shared across the service.
package domain

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// FileKind classifies a tracked or indexed file.
type FileKind string

const (
	KindExcel      FileKind = "excel"
	KindPowerPoint FileKind = "powerpoint"
	KindWord       FileKind = "word"
	KindCSV        FileKind = "csv"
	KindText       FileKind = "text"
	KindOther      FileKind = "other"
)

var extensionKind = map[string]FileKind{
	".xlsx": KindExcel,
	".xlsm": KindExcel,
	".xls":  KindExcel,
	".pptx": KindPowerPoint,
	".ppt":  KindPowerPoint,
	".docx": KindWord,
	".doc":  KindWord,
	".csv":  KindCSV,
	".txt":  KindText,
	".md":   KindText,
	".json": KindText,
}

// mimeByExtension covers Office types the platform mime registry may miss.
var mimeByExtension = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	".xls":  "application/vnd.ms-excel",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".ppt":  "application/vnd.ms-powerpoint",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".csv":  "text/csv",
	".md":   "text/markdown",
}

// KindForPath maps a file path to its kind by extension.
func KindForPath(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := extensionKind[ext]; ok {
		return kind
	}
	return KindOther
}

// MimeForPath returns the MIME type for a path, preferring the platform
// registry and falling back to the Office map.
func MimeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	if mt, ok := mimeByExtension[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

// IsTextual reports whether the kind's content can be read directly as text.
func (k FileKind) IsTextual() bool {
	return k == KindCSV || k == KindText
}

// Document is an indexed file known to the vector layer.
type Document struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalPath string    `json:"originalPath"`
	Kind         FileKind  `json:"kind"`
	SizeBytes    int64     `json:"sizeBytes,omitempty"`
	ChunkCount   int       `json:"chunkCount"`
	IndexedAt    time.Time `json:"indexedAt"`
}
