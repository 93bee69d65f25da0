// Package storage 提供本地文档库的文件访问
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"library-qa-api/pkg/errors"
)

// LocalLibrary 本地文档库。所有路径解析都被限制在根目录内,
// 越界的相对路径一律拒绝。
type LocalLibrary struct {
	root string
	exts map[string]struct{}
}

// NewLocalLibrary 创建本地文档库访问器
func NewLocalLibrary(root string, extensions []string) (*LocalLibrary, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	return &LocalLibrary{root: abs, exts: exts}, nil
}

// Root 文档库根目录的绝对路径
func (l *LocalLibrary) Root() string {
	return l.root
}

// List 返回库内所有受支持文档的相对路径,按字典序排序
func (l *LocalLibrary) List(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// 跳过隐藏目录
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.supported(path) {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Resolve 将库内相对路径解析为绝对路径,越界路径返回 NotFound。
// 拒绝采用 fail-closed 策略:解析失败即视为文件不存在,不泄露目录结构。
func (l *LocalLibrary) Resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.New(errors.CodeDocumentNotFound, "document not found")
	}

	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	abs = filepath.Clean(abs)

	if abs != l.root && !strings.HasPrefix(abs, l.root+string(filepath.Separator)) {
		return "", errors.New(errors.CodeDocumentNotFound, "document not found")
	}
	if !l.supported(abs) {
		return "", errors.New(errors.CodeDocumentNotFound, "document not found")
	}
	return abs, nil
}

func (l *LocalLibrary) supported(path string) bool {
	if len(l.exts) == 0 {
		return true
	}
	_, ok := l.exts[strings.ToLower(filepath.Ext(path))]
	return ok
}
