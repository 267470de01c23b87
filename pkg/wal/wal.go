package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModePrivate rw------- (只有擁有者可讀寫)，帳本內容屬機密資料
const FileModePrivate fs.FileMode = 0600

// ErrBroken Append 失敗且無法截回原長度，之後的寫入一律拒絕
var ErrBroken = errors.New("wal broken")

// file 是 WAL 需要的檔案操作，*os.File 即滿足
type file interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
}

// WAL 是 JSON Lines 格式的 Write-Ahead Log
//
// 每次 Append 會寫入一行並 fsync，回傳成功代表該筆資料已落地；
// 回傳錯誤代表檔案已回到寫入前的長度。
type WAL struct {
	file   file
	size   int64
	broken error
	mu     sync.Mutex
}

// Open 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat wal %s: %w", path, err)
	}
	return &WAL{file: file, size: info.Size()}, nil
}

// Append 寫入一筆資料並刷入硬碟
func (w *WAL) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return w.broken
	}

	err = w.write(line)
	if err == nil {
		w.size += int64(len(line))
		return nil
	}
	// 寫一半或 fsync 失敗：截回寫入前的長度，避免重啟時重放或留下壞行
	if terr := w.file.Truncate(w.size); terr != nil {
		w.broken = fmt.Errorf("%w: truncate to %d: %v", ErrBroken, w.size, terr)
		return errors.Join(err, w.broken)
	}
	return err
}

func (w *WAL) write(line []byte) error {
	n, err := w.file.Write(line)
	if err != nil {
		return err
	}
	if n < len(line) {
		return io.ErrShortWrite
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 依寫入順序讀取所有資料
//
// callback 每次收到一行原始 JSON，避免一次將所有資料載入記憶體。
// 最後一行若不完整 (寫到一半當機)，視為未寫入並截斷。
func (w *WAL) ReadAll(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(w.file)
	var offset int64
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(bytes.TrimSpace(line)) > 0 {
				// torn write: 截掉不完整的尾巴
				if err := w.file.Truncate(offset); err != nil {
					return err
				}
				w.size = offset
				return nil
			}
			w.size = offset + int64(len(line))
			return nil
		}
		if err != nil {
			return err
		}
		start := offset
		offset += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return fmt.Errorf("wal corrupted at offset %d", start)
		}
		if err := callback(json.RawMessage(line)); err != nil {
			return err
		}
	}
}
