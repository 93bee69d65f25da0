package rag

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"library-qa-api/pkg/errors"
)

// LoadDocument 将文档加载为有序的页级文本段。
// PDF 按物理页切段；纯文本（txt/md 等）作为单段返回。
// 路径必须是已经过沙箱解析的绝对路径。
func LoadDocument(path string) ([]PageSegment, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeDocumentNotFound, "document not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.CodeLoadFailure, "failed to stat document")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	default:
		return loadPlainText(path)
	}
}

func loadPDF(path string) ([]PageSegment, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLoadFailure, "failed to parse pdf")
	}
	defer f.Close()

	segments := make([]PageSegment, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// 单页解析失败跳过，整册不可解析由空结果兜底
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			segments = append(segments, PageSegment{Page: i, Text: t})
		}
	}
	return segments, nil
}

func loadPlainText(path string) ([]PageSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLoadFailure, "failed to read document")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []PageSegment{{Page: 1, Text: text}}, nil
}
