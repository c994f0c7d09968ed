// Package storage 提供 OSS 未配置时的本地磁盘存储（开发/自部署场景）。
// 与 oss.Client 暴露同一组方法，录音服务通过接口二选一。
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type Local struct {
	baseDir string
}

func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// UploadRecording 写入本地文件，返回相对于 baseDir 的 key
func (l *Local) UploadRecording(companyID int64, data []byte, ext string) (string, error) {
	key := fmt.Sprintf("recordings/%d/%s%s", companyID, uuid.NewString(), ext)
	fullPath := filepath.Join(l.baseDir, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", err
	}
	return key, nil
}

// Delete 删除本地文件
func (l *Local) Delete(key string) error {
	err := os.Remove(filepath.Join(l.baseDir, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetSignedURL 本地存储没有签名机制，返回 file:// 路径。
// 仅在转写服务与本进程同机部署时可用。
func (l *Local) GetSignedURL(key string, expireSeconds ...int64) (string, error) {
	fullPath := filepath.Join(l.baseDir, key)
	if _, err := os.Stat(fullPath); err != nil {
		return "", err
	}
	return "file://" + fullPath, nil
}

// CleanupExpired 删除超过过期时间的本地录音文件
func (l *Local) CleanupExpired(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.Walk(l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}
