package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobObject 描述 blob 儲存中的一個對象
type BlobObject struct {
	Key     string
	URL     string
	Size    int64
	ModTime time.Time
}

// BlobStore 是外部檔案儲存後端的抽象
// 系統只依賴「寫入後取得可存取的 URL」這一點，後端本身視為外部協作者
type BlobStore interface {
	// Put 寫入一個對象並回傳它的公開 URL
	Put(key string, r io.Reader) (string, error)
	// Delete 移除一個對象，對象不存在時不回報錯誤
	Delete(key string) error
	// List 列出目前所有對象，供孤兒回收使用
	List() ([]BlobObject, error)
}

// LocalBlobStore 把對象存放在本機目錄，經由靜態路由對外提供
type LocalBlobStore struct {
	baseDir string
	baseURL string
}

func NewLocalBlobStore(baseDir, baseURL string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %v", err)
	}
	return &LocalBlobStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalBlobStore) Put(key string, r io.Reader) (string, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		// 寫入中斷時移除殘檔
		os.Remove(path)
		return "", err
	}

	return s.URLFor(key), nil
}

func (s *LocalBlobStore) Delete(key string) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalBlobStore) List() ([]BlobObject, error) {
	var objects []BlobObject

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		objects = append(objects, BlobObject{
			Key:     key,
			URL:     s.URLFor(key),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// URLFor 回傳指定 key 的公開 URL
func (s *LocalBlobStore) URLFor(key string) string {
	return s.baseURL + "/" + key
}
