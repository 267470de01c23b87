package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func readEntries(t *testing.T, w *WAL) []entry {
	t.Helper()
	var out []entry
	require.NoError(t, w.ReadAll(func(raw json.RawMessage) error {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	}))
	return out
}

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(entry{Seq: 1, Note: "a"}))
	require.NoError(t, w.Append(entry{Seq: 2, Note: "b"}))
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []entry{{1, "a"}, {2, "b"}}, readEntries(t, w))

	// 讀完之後仍可繼續追加
	require.NoError(t, w.Append(entry{Seq: 3, Note: "c"}))
	assert.Len(t, readEntries(t, w), 3)
}

func TestReadAllTruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1,\"note\":\"a\"}\n{\"seq\":2,\"no"), FileModePrivate))

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []entry{{1, "a"}}, readEntries(t, w))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"seq\":1,\"note\":\"a\"}\n", string(raw))
}

func TestReadAllRejectsCorruptedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\nnot-json\n"), FileModePrivate))

	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.ReadAll(func(json.RawMessage) error { return nil })
	assert.ErrorContains(t, err, "wal corrupted at offset 10")
}

// faultyFile 包住真實檔案，依設定讓寫入寫一半或 fsync 失敗
type faultyFile struct {
	*os.File
	shortWrite  bool
	failSync    bool
	failTrunc   bool
	truncations int
}

var errDisk = errors.New("disk failure")

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.shortWrite {
		n, err := f.File.Write(p[:len(p)/2])
		if err != nil {
			return n, err
		}
		return n, errDisk
	}
	return f.File.Write(p)
}

func (f *faultyFile) Sync() error {
	if f.failSync {
		return errDisk
	}
	return f.File.Sync()
}

func (f *faultyFile) Truncate(size int64) error {
	f.truncations++
	if f.failTrunc {
		return errDisk
	}
	return f.File.Truncate(size)
}

func openFaulty(t *testing.T) (*WAL, *faultyFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := Open(path)
	require.NoError(t, err)
	ff := &faultyFile{File: w.file.(*os.File)}
	w.file = ff
	t.Cleanup(func() { _ = w.Close() })
	return w, ff, path
}

func TestAppendRollsBackFailedWrite(t *testing.T) {
	cases := []struct {
		name  string
		setup func(ff *faultyFile)
	}{
		{"sync fails after full write", func(ff *faultyFile) { ff.failSync = true }},
		{"short write", func(ff *faultyFile) { ff.shortWrite = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, ff, path := openFaulty(t)
			require.NoError(t, w.Append(entry{Seq: 1, Note: "a"}))

			tc.setup(ff)
			err := w.Append(entry{Seq: 2, Note: "lost"})
			require.ErrorIs(t, err, errDisk)
			assert.Equal(t, 1, ff.truncations)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "{\"seq\":1,\"note\":\"a\"}\n", string(raw))

			// 恢復後可繼續寫，重放不會看到失敗的那筆
			ff.failSync, ff.shortWrite = false, false
			require.NoError(t, w.Append(entry{Seq: 3, Note: "c"}))
			assert.Equal(t, []entry{{1, "a"}, {3, "c"}}, readEntries(t, w))
		})
	}
}

func TestAppendFailsFastWhenRollbackFails(t *testing.T) {
	w, ff, path := openFaulty(t)
	require.NoError(t, w.Append(entry{Seq: 1, Note: "a"}))

	ff.failSync, ff.failTrunc = true, true
	err := w.Append(entry{Seq: 2, Note: "b"})
	require.ErrorIs(t, err, errDisk)
	require.ErrorIs(t, err, ErrBroken)

	ff.failSync, ff.failTrunc = false, false
	err = w.Append(entry{Seq: 3, Note: "c"})
	require.ErrorIs(t, err, ErrBroken)
	assert.Equal(t, 1, ff.truncations)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\"seq\":3")
}
