package fixer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// writeFileAtomic 先写临时文件并 fsync，再 rename 到目标路径
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	return d.Sync()
}

// ensureBackup 在第一次修改文件前创建 <path>.backup
// 同一引擎内已备份过的文件保留最初的备份；上次运行遗留的备份会被覆盖
func (e *Engine) ensureBackup(path string, original []byte, perm fs.FileMode) error {
	if _, ok := e.backedUp[path]; ok {
		return nil
	}
	backupPath := path + BackupSuffix
	if err := writeFileAtomic(backupPath, original, perm); err != nil {
		return fmt.Errorf("create backup %s: %w", backupPath, err)
	}
	e.record(BackupRecord{OriginalPath: path, BackupPath: backupPath})
	e.logger.Debug("backup created", "file", path, "backup", backupPath)
	return nil
}

func (e *Engine) record(rec BackupRecord) bool {
	if _, ok := e.backedUp[rec.OriginalPath]; ok {
		return false
	}
	e.backedUp[rec.OriginalPath] = len(e.backups)
	e.backups = append(e.backups, rec)
	return true
}

// restoreFromBackup 用备份内容覆盖原文件，不删除备份
func restoreFromBackup(rec BackupRecord) error {
	info, err := os.Stat(rec.BackupPath)
	if err != nil {
		return fmt.Errorf("backup for %s: %w", rec.OriginalPath, err)
	}
	data, err := os.ReadFile(rec.BackupPath)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", rec.BackupPath, err)
	}
	if err := writeFileAtomic(rec.OriginalPath, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("restore %s: %w", rec.OriginalPath, err)
	}
	return nil
}

// Backups 返回当前的备份记录
func (e *Engine) Backups() []BackupRecord {
	out := make([]BackupRecord, len(e.backups))
	copy(out, e.backups)
	return out
}

// Rollback 用备份恢复所有被修改的文件并删除备份
// 单个文件失败不影响其他文件，返回合并后的错误
func (e *Engine) Rollback() error {
	var errs []error
	for _, rec := range e.backups {
		if err := restoreFromBackup(rec); err != nil {
			e.logger.Error("rollback failed", "file", rec.OriginalPath, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(rec.BackupPath); err != nil {
			errs = append(errs, fmt.Errorf("remove backup %s: %w", rec.BackupPath, err))
			continue
		}
		e.logger.Info("restored", "file", rec.OriginalPath)
	}

	e.backups = nil
	e.backedUp = make(map[string]int)
	return errors.Join(errs...)
}

// DiscoverBackups 在给定路径下查找 *.backup 文件并登记为备份记录，
// 使之后的进程可以回滚更早一次修复运行；返回新登记的数量
func (e *Engine) DiscoverBackups(paths []string) (int, error) {
	found := 0
	add := func(backupPath string) {
		rec := BackupRecord{
			OriginalPath: strings.TrimSuffix(backupPath, BackupSuffix),
			BackupPath:   backupPath,
		}
		if e.record(rec) {
			found++
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return found, fmt.Errorf("discover backups: %w", err)
		}

		if !info.IsDir() {
			switch {
			case strings.HasSuffix(p, BackupSuffix):
				add(p)
			default:
				if _, err := os.Stat(p + BackupSuffix); err == nil {
					add(p + BackupSuffix)
				}
			}
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), BackupSuffix) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return found, fmt.Errorf("discover backups in %s: %w", p, err)
		}
	}
	return found, nil
}
