// SPDX-License-Identifier: MIT
// Copyright (c) 2026 naofum
// Source: github.com/naofum/ToGoZip

package togozip

import (
	"fmt"
	"strconv"
)

// backupGeneration returns path of backup generation n.
// Generation 0 is "<archive>.bak", older ones are "<archive>.bak.<n>".
func backupGeneration(backupPath string, n int) string {
	if n == 0 {
		return backupPath
	}

	return backupPath + "." + strconv.Itoa(n)
}

// shiftBackups frees generation 0 before the destination is moved there.
// With keep above one every generation moves one slot older and the one
// falling past keep-1 is removed; otherwise the stale backup is removed.
func shiftBackups(fsys fileSystem, backupPath string, keep int) error {
	if keep <= 1 {
		return removeIfExists(fsys, backupPath)
	}

	if err := removeIfExists(fsys, backupGeneration(backupPath, keep-1)); err != nil {
		return err
	}

	for n := keep - 2; n >= 0; n-- {
		from := backupGeneration(backupPath, n)
		to := backupGeneration(backupPath, n+1)

		err := fsys.Rename(from, to)
		if err != nil && !isNotExist(err) {
			return fmt.Errorf("shift backup %s: %w", from, err)
		}
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(fsys fileSystem, path string) error {
	if err := fsys.Remove(path); err != nil && !isNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// restoreBackup moves the backup back to path after a failed swap.
// A leftover at path is cleared first; rename does not replace files on every platform.
func restoreBackup(fsys fileSystem, path string, backupPath string) error {
	_ = removeIfExists(fsys, path)

	if err := fsys.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
